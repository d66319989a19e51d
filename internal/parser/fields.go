package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/maltedev/shop-search-scraper/internal/models"
)

// fieldRule resolves one listing field from a card. ok=false means the rule
// did not apply and the next rule in the chain should be tried.
type fieldRule func(card *goquery.Selection) (value string, ok bool)

// firstOf runs rules in order and returns the first non-empty value, or N/A.
func firstOf(card *goquery.Selection, rules ...fieldRule) string {
	for _, rule := range rules {
		if value, ok := rule(card); ok && strings.TrimSpace(value) != "" {
			return value
		}
	}
	return models.NotAvailable
}

// strippedText concatenates every text node below s, each trimmed.
func strippedText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		collectText(&b, n)
	}
	return b.String()
}

func collectText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(strings.TrimSpace(n.Data))
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c)
	}
}

func hrefOf(s *goquery.Selection) (string, bool) {
	if s.Length() == 0 {
		return "", false
	}
	href, ok := s.Attr("href")
	return strings.TrimSpace(href), ok
}

func nearestAnchor(s *goquery.Selection) *goquery.Selection {
	return s.ParentsFiltered("a[href]").First()
}

func titleContainer(card *goquery.Selection) *goquery.Selection {
	return card.Find("div.br-title.br-freeGridFontChange").First()
}

func titleFromSpan(card *goquery.Selection) (string, bool) {
	span := titleContainer(card).Find("span[title]").First()
	if span.Length() == 0 {
		return "", false
	}
	return strippedText(span), true
}

func titleFromContainer(card *goquery.Selection) (string, bool) {
	c := titleContainer(card)
	if c.Length() == 0 {
		return "", false
	}
	return strippedText(c), true
}

func priceContainer(card *goquery.Selection) *goquery.Selection {
	return card.Find("div.pd-price").First()
}

func priceFromOneLine(card *goquery.Selection) (string, bool) {
	line := priceContainer(card).Find("div.resp-one-line").First()
	if line.Length() == 0 {
		return "", false
	}
	return strippedText(line), true
}

func priceFromContainer(card *goquery.Selection) (string, bool) {
	c := priceContainer(card)
	if c.Length() == 0 {
		return "", false
	}
	return strippedText(c), true
}

func linkFromCard(card *goquery.Selection) (string, bool) {
	if goquery.NodeName(card) != "a" {
		return "", false
	}
	return hrefOf(card)
}

func linkFromTitleAnchor(card *goquery.Selection) (string, bool) {
	c := titleContainer(card)
	if c.Length() == 0 {
		return "", false
	}
	return hrefOf(nearestAnchor(c))
}

func linkFromHeadingAnchor(card *goquery.Selection) (string, bool) {
	h := card.Find("h3").First()
	if h.Length() == 0 {
		return "", false
	}
	return hrefOf(nearestAnchor(h))
}

func linkFromFirstAnchor(card *goquery.Selection) (string, bool) {
	return hrefOf(card.Find("a[href]").First())
}

func storeFromSellerName(card *goquery.Selection) (string, bool) {
	seller := card.Find("div.br-sellerName").First().Find("div.br-seller").First()
	if seller.Length() == 0 {
		return "", false
	}
	return strippedText(seller), true
}

func storeFromMerchant(card *goquery.Selection) (string, bool) {
	merchant := card.Find("a, div, span").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		for _, c := range strings.Fields(class) {
			if merchantClassPattern.MatchString(c) {
				return true
			}
		}
		return false
	}).First()
	if merchant.Length() == 0 {
		return "", false
	}
	return strippedText(merchant), true
}

func storeFromLabel(card *goquery.Selection) (string, bool) {
	label := card.Find("div.br-pdFrom").First()
	if label.Length() == 0 {
		return "", false
	}

	text := strippedText(label)
	if span := label.Find("span").First(); span.Length() > 0 {
		text = strippedText(span)
	}
	return trimFromPrefix(text), true
}

// trimFromPrefix drops a leading "from " in any letter case.
func trimFromPrefix(text string) string {
	const prefix = "from "
	if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
		return strings.TrimSpace(text[len(prefix):])
	}
	return text
}
