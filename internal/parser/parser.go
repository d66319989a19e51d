package parser

import (
	"github.com/maltedev/shop-search-scraper/internal/models"
)

type Parser interface {
	ParseListings(html string) ([]models.Listing, error)
}
