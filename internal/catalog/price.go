package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	discountPriceRe = regexp.MustCompile(`^(\$[\d,]+\.\d{2})(\$[\d,]+\.\d{2})(\d+% OFF)`)
	insidersPriceRe = regexp.MustCompile(`^(\$[\d,]+\.\d{2})(\$[\d,]+\.\d{2})`)
)

// ParsePriceRow interprets the concatenated text of a product tile's price
// row. Three shapes occur: a plain price, a strikethrough pair followed by a
// "% OFF" badge, and an Insiders-only pair of prices. Returns (msrp,
// salePrice); either may be nil when the row cannot be parsed.
func ParsePriceRow(text string) (*float64, *float64) {
	if text == "" {
		return nil, nil
	}

	switch {
	case strings.Contains(text, "%"):
		match := discountPriceRe.FindStringSubmatch(text)
		if match == nil {
			return nil, nil
		}
		return priceValue(match[1]), priceValue(match[2])
	case strings.Contains(text, "Insiders"):
		match := insidersPriceRe.FindStringSubmatch(text)
		if match == nil {
			return nil, nil
		}
		return priceValue(match[1]), priceValue(match[2])
	default:
		v := priceValue(text)
		return v, v
	}
}

// priceValue converts "$1,234.99" to a float, nil when malformed.
func priceValue(text string) *float64 {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(text), "$", ""), ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}
