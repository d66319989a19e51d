package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maltedev/shop-search-scraper/internal/models"
	"github.com/maltedev/shop-search-scraper/internal/terms"
)

// Sink is anything that can persist a finished search result.
type Sink interface {
	Save(ctx context.Context, result *models.ScrapeResult) error
}

// JSONWriter writes one file per result to dir, named
// <sanitized term>_<timestamp>.json.
type JSONWriter struct {
	dir    string
	logger *slog.Logger
}

func NewJSONWriter(dir string, logger *slog.Logger) *JSONWriter {
	return &JSONWriter{
		dir:    dir,
		logger: logger.With("component", "json_writer"),
	}
}

func (w *JSONWriter) Path(result *models.ScrapeResult) string {
	name := fmt.Sprintf("%s_%s.json", terms.Sanitize(result.SearchTerm), result.Timestamp)
	return filepath.Join(w.dir, name)
}

func (w *JSONWriter) Save(ctx context.Context, result *models.ScrapeResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(result)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	path := w.Path(result)
	if err := writeAtomic(path, data); err != nil {
		return err
	}

	w.logger.Info("results saved", "term", result.SearchTerm, "path", path, "listings", result.ListingCount)
	return nil
}

// Encode renders a result with four-space indentation and unescaped
// non-ASCII and HTML characters.
func Encode(result *models.ScrapeResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(result); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeAtomic(path string, data []byte) error {
	// Write to temp file first for atomicity
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move result into place: %w", err)
	}
	return nil
}

// MultiSink fans a result out to every sink and joins their errors. A failing
// sink does not stop the others.
type MultiSink []Sink

func (m MultiSink) Save(ctx context.Context, result *models.ScrapeResult) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Save(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
