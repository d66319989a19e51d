package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListingHasContent(t *testing.T) {
	tests := []struct {
		name     string
		listing  Listing
		expected bool
	}{
		{"Placeholder only", NewListing(), false},
		{"Title only", Listing{Title: "Desk Lamp", Price: NotAvailable, Link: NotAvailable, Store: NotAvailable}, true},
		{"Link only", Listing{Title: NotAvailable, Link: "https://www.bing.com/shop/p/1"}, true},
		{"Blank title", Listing{Title: "   ", Link: NotAvailable}, false},
		{"Price without title or link", Listing{Title: NotAvailable, Price: "$10", Link: NotAvailable}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.listing.HasContent())
		})
	}
}

func TestNewScrapeResultCountMatchesListings(t *testing.T) {
	completed := time.Date(2024, 5, 17, 9, 4, 5, 0, time.UTC)

	empty := NewScrapeResult("lamp", nil, completed, OutcomeEmpty, 16)
	assert.Equal(t, 0, empty.ListingCount)
	assert.NotNil(t, empty.Listings)
	assert.False(t, empty.HasListings())
	assert.Equal(t, "20240517-090405", empty.Timestamp)

	full := NewScrapeResult("lamp", []Listing{{Title: "a"}, {Title: "b"}}, completed, OutcomeSuccess, 1)
	assert.Equal(t, len(full.Listings), full.ListingCount)
	assert.True(t, full.HasListings())
}
