package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

// Normalizer turns the raw text of a price element into minor units.
// It returns ErrParseFailed for text that holds no number and ErrNotFound
// for a zero price.
type Normalizer func(text string) (domain.Price, error)

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// WholeUnits strips every non-digit character and reads the rest as whole
// currency units. Used for shops that never show fractional prices.
func WholeUnits(text string) (domain.Price, error) {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, fmt.Errorf("%w: %q", ErrParseFailed, text)
	}

	units, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrParseFailed, text, err)
	}
	if units == 0 {
		return 0, fmt.Errorf("%w: zero price", ErrNotFound)
	}
	if units > math.MaxInt64/100 {
		return 0, fmt.Errorf("%w: %q: out of range", ErrParseFailed, text)
	}

	return domain.Price(units * 100), nil
}

var numberToken = regexp.MustCompile(`\d[\d\s\x{00a0}\x{202f}.,']*`)

// DecimalUnits reads the first number in text as a decimal amount in major
// units. Either '.' or ',' may be the decimal separator; a separator is
// treated as decimal only when one or two digits follow it at the end.
func DecimalUnits(text string) (domain.Price, error) {
	token := numberToken.FindString(text)
	if token == "" {
		return 0, fmt.Errorf("%w: %q", ErrParseFailed, text)
	}

	token = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\'' {
			return -1
		}
		return r
	}, token)
	token = strings.TrimRight(token, ".,")

	intPart, fracPart := splitDecimal(token)
	digits := strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, intPart)
	if fracPart != "" {
		digits += "." + fracPart
	}

	amount, err := decimal.NewFromString(digits)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrParseFailed, text, err)
	}

	minor := amount.Mul(hundred).Round(0)
	if !minor.IsPositive() {
		return 0, fmt.Errorf("%w: zero price", ErrNotFound)
	}
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %q: out of range", ErrParseFailed, text)
	}

	return domain.Price(minor.IntPart()), nil
}

func splitDecimal(token string) (string, string) {
	idx := strings.LastIndexAny(token, ".,")
	if idx < 0 {
		return token, ""
	}
	frac := token[idx+1:]
	if len(frac) == 0 || len(frac) > 2 {
		return token, ""
	}
	return token[:idx], frac
}
