package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/shop-search-scraper/internal/models"
	"github.com/maltedev/shop-search-scraper/pkg/logger"
)

func sampleResult() *models.ScrapeResult {
	listings := []models.Listing{
		{Title: "Crème brûlée torch", Price: "$24.99", Link: "https://www.bing.com/shop/p?a=1&b=2", Store: "Cook & Co"},
	}
	return models.NewScrapeResult("kitchen torch/butane", listings,
		time.Date(2024, 5, 17, 9, 4, 5, 0, time.UTC), models.OutcomeSuccess, 1)
}

func TestJSONWriterSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewJSONWriter(dir, logger.Discard())
	result := sampleResult()

	require.NoError(t, w.Save(context.Background(), result))

	path := filepath.Join(dir, "kitchen_torch_butane_20240517-090405.json")
	assert.Equal(t, path, w.Path(result))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(data), "\n    \"search_term_input\": \"kitchen torch/butane\"")
	assert.Contains(t, string(data), "Crème brûlée torch")
	assert.Contains(t, string(data), "Cook & Co")
	assert.Contains(t, string(data), "?a=1&b=2")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "20240517-090405", decoded["timestamp"])
	assert.EqualValues(t, 1, decoded["product_count"])
	assert.Len(t, decoded["products"], 1)
	assert.NotContains(t, decoded, "Outcome")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJSONWriterCancelled(t *testing.T) {
	w := NewJSONWriter(t.TempDir(), logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, w.Save(ctx, sampleResult()), context.Canceled)
}

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) Save(ctx context.Context, r *models.ScrapeResult) error {
	s.calls++
	return s.err
}

func TestMultiSink(t *testing.T) {
	failing := &stubSink{err: errors.New("db down")}
	healthy := &stubSink{}

	err := MultiSink{failing, nil, healthy}.Save(context.Background(), sampleResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, healthy.calls)

	assert.NoError(t, MultiSink{healthy}.Save(context.Background(), sampleResult()))
}
