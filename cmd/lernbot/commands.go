package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/lernbot/internal/access"
	"github.com/pavelanni/lernbot/internal/format"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-questions FILE...",
		Short: "Import exam questions from JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd)
			v := viperForCmd(cmd)

			db, err := openStore(v)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			return importFiles(cmd.Context(), db, args)
		},
	}
	addStoreFlags(cmd)
	return cmd
}

func grantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Extend a learner's subscription",
		RunE:  runGrant,
	}
	addStoreFlags(cmd)
	f := cmd.Flags()
	f.Int64("user", 0, "Chat user ID (required)")
	f.Int("days", 30, "Days to add")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runGrant(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	userID := v.GetInt64("user")
	until, err := access.Grant(cmd.Context(), db, userID, v.GetInt("days"), time.Now())
	if err != nil {
		return fmt.Errorf("grant user %d: %w", userID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "user %d subscribed until %s\n", userID, until.Format(format.DateLayout))
	return nil
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam attempts as JSON",
		RunE:  runExport,
	}
	addStoreFlags(cmd)
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAttempts(cmd.Context())
	if err != nil {
		return fmt.Errorf("export attempts: %w", err)
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}
