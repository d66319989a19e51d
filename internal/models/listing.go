package models

import (
	"strings"
	"time"
)

// NotAvailable is the placeholder stored for any listing field that could not be resolved.
const NotAvailable = "N/A"

// TimestampLayout is the layout used for result timestamps and output file names.
const TimestampLayout = "20060102-150405"

type Listing struct {
	Title string `json:"title"`
	Price string `json:"price"`
	Link  string `json:"link"`
	Store string `json:"store"`
}

func NewListing() Listing {
	return Listing{
		Title: NotAvailable,
		Price: NotAvailable,
		Link:  NotAvailable,
		Store: NotAvailable,
	}
}

// HasContent reports whether the listing carries a usable title or link.
func (l Listing) HasContent() bool {
	return isResolved(l.Title) || isResolved(l.Link)
}

func isResolved(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != NotAvailable
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeEmpty   Outcome = "empty"
	OutcomeBlocked Outcome = "blocked"
	OutcomeError   Outcome = "error"
)

type ScrapeResult struct {
	SearchTerm   string    `json:"search_term_input"`
	Timestamp    string    `json:"timestamp"`
	ListingCount int       `json:"product_count"`
	Listings     []Listing `json:"products"`

	CompletedAt time.Time `json:"-"`
	Outcome     Outcome   `json:"-"`
	Attempts    int       `json:"-"`
}

// NewScrapeResult builds a completed result; ListingCount always mirrors len(listings).
func NewScrapeResult(term string, listings []Listing, completedAt time.Time, outcome Outcome, attempts int) *ScrapeResult {
	if listings == nil {
		listings = make([]Listing, 0)
	}
	return &ScrapeResult{
		SearchTerm:   term,
		Timestamp:    completedAt.Format(TimestampLayout),
		ListingCount: len(listings),
		Listings:     listings,
		CompletedAt:  completedAt,
		Outcome:      outcome,
		Attempts:     attempts,
	}
}

func (r *ScrapeResult) HasListings() bool {
	return r != nil && r.ListingCount > 0
}
