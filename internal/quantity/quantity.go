// Package quantity normalises and renders fixed precision stock quantities
// and money amounts. Parsing never fails: malformed input becomes zero.
package quantity

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// QuantityPlaces is the precision of stock quantities.
	QuantityPlaces = 3
	// MoneyPlaces is the precision of prices.
	MoneyPlaces = 2
)

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Normalize parses raw and rounds it to three decimal places.
func Normalize(raw any) decimal.Decimal {
	return parse(raw).Round(QuantityPlaces)
}

// NormalizeMoney parses raw and rounds it to two decimal places.
func NormalizeMoney(raw any) decimal.Decimal {
	return parse(raw).Round(MoneyPlaces)
}

// OptionalMoney normalises a price that may be absent. Empty strings and nil
// produce an invalid NullDecimal.
func OptionalMoney(raw any) decimal.NullDecimal {
	switch v := raw.(type) {
	case nil:
		return decimal.NullDecimal{}
	case string:
		if strings.TrimSpace(v) == "" {
			return decimal.NullDecimal{}
		}
	case Raw:
		if v.IsEmpty() {
			return decimal.NullDecimal{}
		}
	case decimal.NullDecimal:
		if !v.Valid {
			return v
		}
		return decimal.NewNullDecimal(v.Decimal.Round(MoneyPlaces))
	}
	return decimal.NewNullDecimal(NormalizeMoney(raw))
}

func parse(raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case decimal.NullDecimal:
		if !v.Valid {
			return decimal.Zero
		}
		return v.Decimal
	case Raw:
		return parseString(string(v))
	case string:
		return parseString(v)
	case []byte:
		return parseString(string(v))
	case float64:
		return fromFloat(v)
	case float32:
		return fromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case int32:
		return decimal.NewFromInt(int64(v))
	case json.Number:
		return parseString(v.String())
	case fmt.Stringer:
		return parseString(v.String())
	default:
		return decimal.Zero
	}
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// parseString mirrors a lenient numeric cast: commas act as decimal
// separators and only the leading numeric prefix is read.
func parseString(s string) decimal.Decimal {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	match := numericPrefix.FindString(s)
	if match == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(match); err == nil {
		return d
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return decimal.Zero
	}
	return fromFloat(f)
}

// Formatter renders quantities and money for a locale.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter builds a Formatter for tag.
func NewFormatter(tag language.Tag) *Formatter {
	return &Formatter{printer: message.NewPrinter(tag)}
}

var defaultFormatter = NewFormatter(language.English)

// FormatQuantity renders v with three decimal places.
func (f *Formatter) FormatQuantity(v decimal.Decimal) string {
	return f.printer.Sprintf("%.3f", v.Round(QuantityPlaces).InexactFloat64())
}

// FormatMoney renders v with two decimal places, or "" when absent.
func (f *Formatter) FormatMoney(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return f.printer.Sprintf("%.2f", v.Decimal.Round(MoneyPlaces).InexactFloat64())
}

// FormatQuantity renders v using the default English formatter.
func FormatQuantity(v decimal.Decimal) string {
	return defaultFormatter.FormatQuantity(v)
}

// FormatMoney renders v using the default English formatter.
func FormatMoney(v decimal.NullDecimal) string {
	return defaultFormatter.FormatMoney(v)
}
