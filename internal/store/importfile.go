package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pavelanni/lernbot/internal/model"
)

// QuestionImporter is a store that can load question files. Both backends
// implement it.
type QuestionImporter interface {
	ImportQuestions(ctx context.Context, items []model.QuestionImport) (int, error)
	GetImportedFileHash(ctx context.Context, name string) (string, error)
	SetImportedFileHash(ctx context.Context, name, sum string) error
}

// ImportResult reports what ImportFile did with one file.
type ImportResult struct {
	Name     string `json:"name"`
	SHA256   string `json:"sha256"`
	Imported int    `json:"imported"`
	Skipped  bool   `json:"skipped"`
}

// ImportFile imports the JSON question array in data under name. A file
// whose digest matches the one recorded at its last import is skipped.
func ImportFile(ctx context.Context, s QuestionImporter, name string, data []byte) (ImportResult, error) {
	sum := sha256.Sum256(data)
	res := ImportResult{Name: name, SHA256: hex.EncodeToString(sum[:])}

	stored, err := s.GetImportedFileHash(ctx, name)
	if err != nil {
		return res, fmt.Errorf("check import status: %w", err)
	}
	if stored == res.SHA256 {
		slog.Info("question file unchanged, skipping", "file", name)
		res.Skipped = true
		return res, nil
	}

	var items []model.QuestionImport
	if err := json.Unmarshal(data, &items); err != nil {
		return res, fmt.Errorf("parse %s: %w", name, err)
	}
	n, err := s.ImportQuestions(ctx, items)
	if err != nil {
		return res, fmt.Errorf("import %s: %w", name, err)
	}
	res.Imported = n

	if err := s.SetImportedFileHash(ctx, name, res.SHA256); err != nil {
		slog.Error("record import hash", "file", name, "error", err)
	}
	slog.Info("imported questions", "file", name, "count", n)
	return res, nil
}
