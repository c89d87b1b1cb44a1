package legacy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrParse = errors.New("unparseable legacy value")

var (
	rateToken   = regexp.MustCompile(`(?i)(?:\bbs\.?|\bves|\busd|\$|=)\s*(-?\d[\d.,]*)`)
	plainNumber = regexp.MustCompile(`^-?\d[\d.,]*$`)
)

// ParseAmount reads a localized money string such as "Bs. 1.234,56" or
// "$1,234.56". Whichever of ',' and '.' comes last is the decimal separator.
func ParseAmount(value string) (decimal.Decimal, error) {
	var b strings.Builder
	digits := 0
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == ',' || r == '.' || r == '-':
			b.WriteRune(r)
		}
	}
	if digits == 0 {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrParse, value)
	}
	cleaned := strings.Trim(b.String(), ".,")
	negative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.ReplaceAll(cleaned, "-", "")

	decimalSep, thousandsSep := ".", ","
	if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
		decimalSep, thousandsSep = ",", "."
	}
	cleaned = strings.ReplaceAll(cleaned, thousandsSep, "")
	if strings.Count(cleaned, decimalSep) > 1 {
		// "1.234.567" has no decimal part at all
		cleaned = strings.ReplaceAll(cleaned, decimalSep, "")
	}
	cleaned = strings.Replace(cleaned, decimalSep, ".", 1)
	if negative {
		cleaned = "-" + cleaned
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %w", ErrParse, value, err)
	}
	return amount, nil
}

// ExtractRate finds the exchange rate inside free text like
// "Tasa BCV: Bs 36,50" or "1 USD = 40.12 VES". A bare number is taken as is.
func ExtractRate(text string) (decimal.Decimal, error) {
	token := strings.TrimSpace(text)
	if !plainNumber.MatchString(token) {
		match := rateToken.FindStringSubmatch(text)
		if match == nil {
			return decimal.Zero, fmt.Errorf("%w: no rate in %q", ErrParse, text)
		}
		token = match[1]
	}
	rate, err := ParseAmount(token)
	if err != nil {
		return decimal.Zero, err
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive rate in %q", ErrParse, text)
	}
	return rate, nil
}

// Field returns legacy[key] as text. Numbers decoded from JSON are rendered
// with a point decimal separator, which ParseAmount reads back unchanged.
func Field(legacy map[string]any, key string) (string, bool) {
	raw, ok := legacy[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, strings.TrimSpace(v) != ""
	case float64:
		return decimal.NewFromFloat(v).String(), true
	default:
		return fmt.Sprint(v), true
	}
}
