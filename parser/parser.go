package parser

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/aluiziolira/go-scrape-shops/models"
)

// ErrNoNumber is returned when a numeric field carries no digits at all.
var ErrNoNumber = errors.New("no number found")

// priceRegex matches the first price-like number. Swiss shops group
// thousands with an apostrophe (1'299.–) and some feeds use commas.
var priceRegex = regexp.MustCompile(`\d[\d'’,]*(?:\.\d+)?`)

var ratingRegex = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// ValidateItem ensures the extractor captured the mandatory fields.
func ValidateItem(item *models.Item) error {
	if item == nil {
		return fmt.Errorf("item is nil")
	}
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("item missing name")
	}
	if math.IsNaN(item.Price) || item.Price < 0 {
		return fmt.Errorf("item %s has invalid price %v", item.Name, item.Price)
	}
	if item.Rating != nil && (*item.Rating < 0 || *item.Rating > 5) {
		return fmt.Errorf("item %s has rating %v outside 0-5", item.Name, *item.Rating)
	}
	return nil
}

// ParsePrice extracts the first price in text, e.g. "CHF 1'299.–" or "ab 49.95".
func ParsePrice(text string) (float64, error) {
	found := priceRegex.FindString(text)
	if found == "" {
		return 0, fmt.Errorf("parse price %q: %w", text, ErrNoNumber)
	}
	cleaned := strings.NewReplacer("'", "", "’", "", ",", "").Replace(found)
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	return price, nil
}

// ParseRating extracts a 0-5 star rating. Blank text means no rating and is not an error.
func ParseRating(text string) (*float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	found := ratingRegex.FindString(text)
	if found == "" {
		return nil, fmt.Errorf("parse rating %q: %w", text, ErrNoNumber)
	}
	rating, err := strconv.ParseFloat(strings.ReplaceAll(found, ",", "."), 64)
	if err != nil {
		return nil, fmt.Errorf("parse rating %q: %w", text, err)
	}
	if rating < 0 || rating > 5 {
		return nil, fmt.Errorf("parse rating %q: %v outside 0-5", text, rating)
	}
	return &rating, nil
}

// ParseInt returns the digits of text as an int, ignoring grouping characters ("3'412 Produkte").
func ParseInt(text string) (int, error) {
	var b strings.Builder
	started := false
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
			started = true
		case started && (r == '\'' || r == '’' || r == ',' || r == '.'):
		case started:
			return strconv.Atoi(b.String())
		}
	}
	if b.Len() == 0 {
		return 0, fmt.Errorf("parse int %q: %w", text, ErrNoNumber)
	}
	return strconv.Atoi(b.String())
}

// CleanText collapses whitespace and strips leading characters that are not letters or digits.
func CleanText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimLeftFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// LeadingUppercase returns the longest run of all-caps words that starts name
// and is followed by a word starting with a letter: "JBL Tune 510BT" and
// "JBL GO 3 Bluetooth" both yield "JBL".
func LeadingUppercase(name string) string {
	words := strings.Fields(name)
	n := 0
	for n < len(words) && isCapsWord(words[n]) {
		n++
	}
	for k := min(n, len(words)-1); k > 0; k-- {
		if startsWithLetter(words[k]) {
			return strings.TrimRightFunc(strings.Join(words[:k], " "), func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			})
		}
	}
	return ""
}

// SplitBrand returns brand and the name with the brand prefix removed. An empty
// brand is guessed from the leading uppercase words of name.
func SplitBrand(name, brand string) (string, string) {
	brand = strings.TrimSpace(brand)
	if brand == "" {
		brand = LeadingUppercase(name)
	}
	if brand == "" {
		return "", strings.TrimSpace(name)
	}
	if len(name) >= len(brand) && strings.EqualFold(name[:len(brand)], brand) {
		return brand, strings.TrimSpace(name[len(brand):])
	}
	return brand, strings.TrimSpace(name)
}

func isCapsWord(word string) bool {
	hasLetter := false
	for _, r := range word {
		switch {
		case unicode.IsLetter(r):
			if !unicode.IsUpper(r) {
				return false
			}
			hasLetter = true
		case unicode.IsDigit(r) || r == '_':
			return false
		}
	}
	return hasLetter || word != ""
}

func startsWithLetter(word string) bool {
	for _, r := range word {
		return unicode.IsLetter(r)
	}
	return false
}
