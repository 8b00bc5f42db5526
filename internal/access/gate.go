// Package access decides whether a user may use subscription-gated features.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/lernbot/internal/format"
	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/model"
)

const day = 24 * time.Hour

// Store is the subscription lookup the gate needs.
type Store interface {
	CheckSubscription(ctx context.Context, userID int64) (bool, *time.Time, error)
	TouchLastActive(ctx context.Context, userID int64) error
}

// Decision is the outcome of a gate check. A permitted decision may carry a
// renewal Warning; a denied one carries the Reason shown to the user.
type Decision struct {
	Status  model.SubscriptionStatus
	Expiry  *time.Time
	Days    int
	Warning string
	Reason  string
}

// Allowed reports whether the gated operation may proceed.
func (d Decision) Allowed() bool {
	return d.Status.Permits()
}

// Gate checks subscriptions before gated operations.
type Gate struct {
	store Store
	now   func() time.Time
}

// NewGate creates a gate over store.
func NewGate(store Store) *Gate {
	return &Gate{store: store, now: time.Now}
}

// Status derives the subscription status of expiry at now, together with
// the whole days remaining.
func Status(expiry *time.Time, now time.Time) (model.SubscriptionStatus, int) {
	if expiry == nil {
		return model.SubscriptionNone, 0
	}
	remaining := expiry.Sub(now)
	if remaining <= 0 {
		return model.SubscriptionExpired, 0
	}
	days := int(remaining / day)
	switch {
	case days <= 3:
		return model.SubscriptionExpiring3, days
	case days <= 7:
		return model.SubscriptionExpiring7, days
	}
	return model.SubscriptionActive, days
}

// Check evaluates userID's subscription. On a permitted decision the user's
// last-active time is refreshed in the background. Texts are localized
// through the localizer carried by ctx.
func (g *Gate) Check(ctx context.Context, userID int64) Decision {
	_, expiry, err := g.store.CheckSubscription(ctx, userID)
	if err != nil {
		slog.Error("check subscription", "user_id", userID, "error", err)
		expiry = nil
	}

	status, days := Status(expiry, g.now())
	d := Decision{Status: status, Expiry: expiry, Days: days}

	switch status {
	case model.SubscriptionNone:
		d.Reason = i18n.T(ctx, "DenyNoSubscription")
		return d
	case model.SubscriptionExpired:
		d.Reason = i18n.Td(ctx, "DenyExpired", map[string]any{"Expiry": expiry.Format(format.DateLayout)})
		return d
	case model.SubscriptionExpiring3:
		d.Warning = i18n.Td(ctx, "WarnExpiring3", map[string]any{"Days": days})
	case model.SubscriptionExpiring7:
		d.Warning = i18n.Td(ctx, "WarnExpiring7", map[string]any{"Days": days})
	}

	g.touch(ctx, userID)
	return d
}

func (g *Gate) touch(ctx context.Context, userID int64) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := g.store.TouchLastActive(ctx, userID); err != nil {
			slog.Error("touch last active", "user_id", userID, "error", err)
		}
	}()
}

// Extend returns expiry pushed out by days, counted from now when the
// subscription is unset or already over.
func Extend(expiry *time.Time, now time.Time, days int) time.Time {
	base := now
	if expiry != nil && expiry.After(now) {
		base = *expiry
	}
	return base.Add(time.Duration(days) * day)
}

// GrantStore is what Grant needs to extend a subscription.
type GrantStore interface {
	CheckSubscription(ctx context.Context, userID int64) (bool, *time.Time, error)
	GrantSubscription(ctx context.Context, userID int64, until time.Time) error
}

// Grant extends userID's subscription by days and returns the new expiry.
func Grant(ctx context.Context, store GrantStore, userID int64, days int, now time.Time) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, fmt.Errorf("grant %d days: must be positive", days)
	}
	_, expiry, err := store.CheckSubscription(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("look up subscription: %w", err)
	}
	until := Extend(expiry, now, days)
	if err := store.GrantSubscription(ctx, userID, until); err != nil {
		return time.Time{}, err
	}
	slog.Info("subscription granted", "user_id", userID, "days", days, "until", until)
	return until, nil
}
