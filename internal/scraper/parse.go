package scraper

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	currencyRe   = regexp.MustCompile(`[Q$,\s]`)
	currencyTxt  = regexp.MustCompile(`(?i)GTQ|USD|quetzales?|dolares?`)
	numericRe    = regexp.MustCompile(`(\d+\.?\d*)`)
	unwantedRe   = regexp.MustCompile(`[^\w\sáéíóúüñÁÉÍÓÚÜÑ\-\.\(\)\/]`)
	modelRe      = regexp.MustCompile(`\b([A-Z0-9\-]+\s*\d+[A-Z0-9\-]*)\b`)
)

// brandPatterns maps a canonical brand name to the regexp that detects it
// in a product title. Order matters: apple product lines like "iphone"
// must win before a generic brand word further down the title.
var brandPatterns = []struct {
	brand   string
	pattern *regexp.Regexp
}{
	{"Apple", regexp.MustCompile(`\b(apple|iphone|ipad|macbook|imac)\b`)},
	{"Samsung", regexp.MustCompile(`\bsamsung\b`)},
	{"LG", regexp.MustCompile(`\blg\b`)},
	{"Sony", regexp.MustCompile(`\bsony\b`)},
	{"HP", regexp.MustCompile(`\bhp\b`)},
	{"Dell", regexp.MustCompile(`\bdell\b`)},
	{"Lenovo", regexp.MustCompile(`\blenovo\b`)},
	{"ASUS", regexp.MustCompile(`\basus\b`)},
	{"Acer", regexp.MustCompile(`\bacer\b`)},
}

// ExtractPrice parses a numeric price out of vendor price text such as
// "Q1,299.00" or "GTQ 549.99". Returns 0 and false when no numeric value
// is present.
func ExtractPrice(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	text = currencyRe.ReplaceAllString(text, "")
	text = currencyTxt.ReplaceAllString(text, "")
	m := numericRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	price, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// CleanText collapses whitespace and strips characters that vendor markup
// tends to leak into product names.
func CleanText(text string) string {
	text = whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	return unwantedRe.ReplaceAllString(text, "")
}

// ExtractBrandModel guesses the brand and model from a product title.
// Either return value may be empty.
func ExtractBrandModel(name string) (brand, model string) {
	lower := strings.ToLower(name)
	for _, bp := range brandPatterns {
		if bp.pattern.MatchString(lower) {
			brand = bp.brand
			break
		}
	}
	if m := modelRe.FindStringSubmatch(name); m != nil {
		model = m[1]
	}
	return brand, model
}

// queryCasings restores the canonical casing of brand words in a search
// query. Distinct from brandPatterns: "iphone" stays "iPhone" in a query
// while the brand detected from it is Apple.
var queryCasings = []struct {
	word    string
	pattern *regexp.Regexp
}{
	{"iPhone", regexp.MustCompile(`(?i)\biphone\b`)},
	{"Samsung", regexp.MustCompile(`(?i)\bsamsung\b`)},
	{"LG", regexp.MustCompile(`(?i)\blg\b`)},
	{"Sony", regexp.MustCompile(`(?i)\bsony\b`)},
	{"HP", regexp.MustCompile(`(?i)\bhp\b`)},
	{"Dell", regexp.MustCompile(`(?i)\bdell\b`)},
	{"Lenovo", regexp.MustCompile(`(?i)\blenovo\b`)},
	{"ASUS", regexp.MustCompile(`(?i)\basus\b`)},
	{"Acer", regexp.MustCompile(`(?i)\bacer\b`)},
}

// NormalizeQuery prepares a user query for vendor search endpoints:
// whitespace is collapsed and well-known brand names get their canonical
// casing so vendor search engines match them.
func NormalizeQuery(query string) string {
	query = whitespaceRe.ReplaceAllString(strings.TrimSpace(query), " ")
	for _, qc := range queryCasings {
		query = qc.pattern.ReplaceAllString(query, qc.word)
	}
	return query
}

// discountPercent computes the rounded discount for a sale price, or nil
// when the listing is not discounted.
func discountPercent(original, price float64) *float64 {
	if original <= price || original == 0 {
		return nil
	}
	d := (original - price) / original * 100
	d = float64(int(d*100+0.5)) / 100
	return &d
}
