package access

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/model"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeStore struct {
	mu       sync.Mutex
	expiry   *time.Time
	err      error
	touchErr error
	touched  []int64
}

func (f *fakeStore) CheckSubscription(_ context.Context, _ int64) (bool, *time.Time, error) {
	if f.err != nil {
		return false, nil, f.err
	}
	return f.expiry != nil && f.expiry.After(time.Now()), f.expiry, nil
}

func (f *fakeStore) TouchLastActive(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, userID)
	return f.touchErr
}

func (f *fakeStore) touchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.touched)
}

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		expiry *time.Time
		want   model.SubscriptionStatus
		days   int
	}{
		{"none", nil, model.SubscriptionNone, 0},
		{"expired", at(-time.Hour), model.SubscriptionExpired, 0},
		{"exactly now", at(0), model.SubscriptionExpired, 0},
		{"hours left", at(5 * time.Hour), model.SubscriptionExpiring3, 0},
		{"three days", at(3*day + time.Hour), model.SubscriptionExpiring3, 3},
		{"four days", at(4*day + time.Hour), model.SubscriptionExpiring7, 4},
		{"seven days", at(7*day + time.Hour), model.SubscriptionExpiring7, 7},
		{"eight days", at(8*day + time.Hour), model.SubscriptionActive, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, days := Status(tt.expiry, now)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.days, days)
		})
	}
}

func newGate(store *fakeStore) *Gate {
	g := NewGate(store)
	g.now = func() time.Time { return now }
	return g
}

func enCtx() context.Context {
	return i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("en"))
}

func TestCheck_Denied(t *testing.T) {
	store := &fakeStore{}
	d := newGate(store).Check(enCtx(), 1)
	assert.False(t, d.Allowed())
	assert.Equal(t, model.SubscriptionNone, d.Status)
	assert.NotEmpty(t, d.Reason)

	store.expiry = at(-48 * time.Hour)
	d = newGate(store).Check(enCtx(), 1)
	assert.False(t, d.Allowed())
	assert.Equal(t, model.SubscriptionExpired, d.Status)
	assert.Contains(t, d.Reason, "30 May 2026")

	assert.Zero(t, store.touchCount())
}

func TestCheck_Warnings(t *testing.T) {
	store := &fakeStore{expiry: at(2*day + time.Hour)}
	d := newGate(store).Check(enCtx(), 7)
	assert.True(t, d.Allowed())
	assert.Equal(t, "\nYour subscription expires in 2 days. Please renew soon.", d.Warning)

	store.expiry = at(6*day + time.Hour)
	d = newGate(store).Check(enCtx(), 7)
	assert.Equal(t, "\nReminder: Subscription expires in 6 days.", d.Warning)

	store.expiry = at(30 * day)
	d = newGate(store).Check(enCtx(), 7)
	assert.Equal(t, model.SubscriptionActive, d.Status)
	assert.Empty(t, d.Warning)
}

func TestCheck_TouchesLastActive(t *testing.T) {
	store := &fakeStore{expiry: at(30 * day)}
	ctx, cancel := context.WithCancel(enCtx())
	newGate(store).Check(ctx, 9)
	cancel()

	assert.Eventually(t, func() bool { return store.touchCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCheck_TouchFailureDoesNotBlock(t *testing.T) {
	store := &fakeStore{expiry: at(2*day + time.Hour), touchErr: errors.New("database is locked")}
	d := newGate(store).Check(enCtx(), 9)

	assert.True(t, d.Allowed())
	assert.Equal(t, model.SubscriptionExpiring3, d.Status)
	assert.Equal(t, "\nYour subscription expires in 2 days. Please renew soon.", d.Warning)
	assert.Eventually(t, func() bool { return store.touchCount() == 1 }, time.Second, 5*time.Millisecond)

	// A later call is unaffected by the earlier failure.
	assert.True(t, newGate(store).Check(enCtx(), 9).Allowed())
}

func TestCheck_StoreErrorDenies(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	d := newGate(store).Check(enCtx(), 1)
	assert.False(t, d.Allowed())
	assert.Equal(t, model.SubscriptionNone, d.Status)
}

func (f *fakeStore) GrantSubscription(_ context.Context, _ int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiry = &until
	return nil
}

func TestExtend(t *testing.T) {
	future := now.Add(10 * day)
	past := now.Add(-10 * day)

	assert.Equal(t, now.Add(30*day), Extend(nil, now, 30))
	assert.Equal(t, now.Add(30*day), Extend(&past, now, 30))
	assert.Equal(t, future.Add(30*day), Extend(&future, now, 30))
}

func TestGrant(t *testing.T) {
	current := now.Add(5 * day)
	store := &fakeStore{expiry: &current}

	until, err := Grant(context.Background(), store, 3, 30, now)
	assert.NoError(t, err)
	assert.Equal(t, current.Add(30*day), until)
	assert.Equal(t, until, *store.expiry)

	_, err = Grant(context.Background(), store, 3, 0, now)
	assert.Error(t, err)
}
