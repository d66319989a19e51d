package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/maltedev/shop-search-scraper/internal/models"
)

const DefaultBaseURL = "https://www.bing.com"

// listingCardSelectors are tried in order; each targets a container class the
// results page has used for listing cards at some point.
var listingCardSelectors = []string{
	"li.GridItem",
	"div.br-resultsItemObsRV",
	"div.sh-dlr__list-result",
	"div.sh-dgr__grprod",
	"div.br-card",
	"div.Card",
	"div.algocore",
	"div.product-item",
	"div[data-hveid]",
	"div[data-listing-id]",
}

var merchantClassPattern = regexp.MustCompile(`(?i)merchant`)

type BingShopParser struct {
	baseURL   *url.URL
	selectors []string

	titleRules []fieldRule
	priceRules []fieldRule
	linkRules  []fieldRule
	storeRules []fieldRule
}

func NewBingShopParser() *BingShopParser {
	p, err := NewBingShopParserWithBase(DefaultBaseURL)
	if err != nil {
		panic(err)
	}
	return p
}

// NewBingShopParserWithBase resolves relative listing links against baseURL.
func NewBingShopParserWithBase(baseURL string) (*BingShopParser, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	return &BingShopParser{
		baseURL:    base,
		selectors:  listingCardSelectors,
		titleRules: []fieldRule{titleFromSpan, titleFromContainer},
		priceRules: []fieldRule{priceFromOneLine, priceFromContainer},
		linkRules:  []fieldRule{linkFromCard, linkFromTitleAnchor, linkFromHeadingAnchor, linkFromFirstAnchor},
		storeRules: []fieldRule{storeFromSellerName, storeFromMerchant, storeFromLabel},
	}, nil
}

func (p *BingShopParser) ParseListings(page string) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	cards := p.findCards(doc)
	listings := make([]models.Listing, 0, len(cards))

	for _, card := range cards {
		listing := p.extractListing(card)
		if listing.HasContent() {
			listings = append(listings, listing)
		}
	}

	return listings, nil
}

// findCards collects matches of every selector in selector order, keeping
// only the first occurrence of each DOM node.
func (p *BingShopParser) findCards(doc *goquery.Document) []*goquery.Selection {
	seen := make(map[*html.Node]struct{})
	var cards []*goquery.Selection

	for _, selector := range p.selectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			node := s.Get(0)
			if _, dup := seen[node]; dup {
				return
			}
			seen[node] = struct{}{}
			cards = append(cards, s)
		})
	}

	return cards
}

func (p *BingShopParser) extractListing(card *goquery.Selection) models.Listing {
	listing := models.Listing{
		Title: firstOf(card, p.titleRules...),
		Price: firstOf(card, p.priceRules...),
		Link:  firstOf(card, p.linkRules...),
		Store: firstOf(card, p.storeRules...),
	}

	if listing.Link != models.NotAvailable {
		listing.Link = Absolutize(p.baseURL, listing.Link)
	}

	return listing
}

// Absolutize resolves link against base unless it is already an http(s) URL.
// Applying it twice yields the same result as applying it once.
func Absolutize(base *url.URL, link string) string {
	link = cleanLink(link)
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}

	ref, err := url.Parse(link)
	if err != nil {
		return strings.TrimSuffix(base.String(), "/") + "/" + strings.TrimPrefix(link, "/")
	}
	return base.ResolveReference(ref).String()
}

// cleanLink drops control characters (wrapped hrefs) and escapes any '%'
// that does not start a valid escape sequence.
func cleanLink(link string) string {
	link = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, link)
	link = strings.TrimSpace(link)

	if !strings.Contains(link, "%") {
		return link
	}

	var b strings.Builder
	b.Grow(len(link) + 4)
	for i := 0; i < len(link); i++ {
		if link[i] == '%' && !(i+2 < len(link) && isHex(link[i+1]) && isHex(link[i+2])) {
			b.WriteString("%25")
			continue
		}
		b.WriteByte(link[i])
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}
