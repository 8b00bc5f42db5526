package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavelanni/lernbot/internal/handler"
	appI18n "github.com/pavelanni/lernbot/internal/i18n"
	"github.com/pavelanni/lernbot/internal/session"
)

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the tutor on the terminal",
		Long: `Reads one event per line from stdin:
  /start      sends a command
  !menu_exam  presses the button with that payload
  anything    sends a text message`,
		RunE: runChat,
	}
	addStoreFlags(cmd)
	addLLMFlags(cmd)
	f := cmd.Flags()
	f.Int64("user", 1, "Chat user ID to act as")
	f.String("name", "Learner", "First name shown at registration")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	db, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	bot, err := newOrchestrator(cmd.Context(), v, db)
	if err != nil {
		return err
	}

	profile := session.Profile{FirstName: v.GetString("name")}
	return chatLoop(cmd.Context(), bot, v.GetInt64("user"), profile, cmd.InOrStdin(), cmd.OutOrStdout())
}

// chatLoop feeds lines from in to bot until in is exhausted.
func chatLoop(ctx context.Context, bot handler.Dispatcher, userID int64, profile session.Profile, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}
		ev := parseLine(line)
		ev.UserID = userID
		ev.Profile = profile

		printReply(out, bot.Handle(ctx, ev))
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func parseLine(line string) session.Event {
	switch {
	case strings.HasPrefix(line, "/"):
		return session.Event{Kind: session.KindCommand, Command: strings.TrimPrefix(line, "/")}
	case strings.HasPrefix(line, "!"):
		return session.Event{Kind: session.KindButton, Payload: strings.TrimPrefix(line, "!")}
	default:
		return session.Event{Kind: session.KindText, Text: line}
	}
}

func printReply(out io.Writer, r session.Reply) {
	if r.Empty() {
		return
	}
	fmt.Fprintln(out, r.Text)
	for _, row := range r.Buttons {
		labels := make([]string, 0, len(row))
		for _, b := range row {
			labels = append(labels, fmt.Sprintf("[%s] !%s", b.Text, b.Payload))
		}
		fmt.Fprintln(out, "  "+strings.Join(labels, "   "))
	}
}
