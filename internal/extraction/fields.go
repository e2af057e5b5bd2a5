package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/shopspring/decimal"
)

// dateLayouts are tried in order when reading a model-supplied date.
var dateLayouts = []string{
	domain.DateLayout,
	"2006/01/02",
	"02/01/2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	time.RFC3339,
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// getStringField returns a trimmed string field. ok is false when the field
// is missing, null or empty; err is set when it has a non-string type.
func getStringField(m map[string]any, key string) (s string, ok bool, err error) {
	v, present := m[key]
	if !present || v == nil {
		return "", false, nil
	}
	str, isString := v.(string)
	if !isString {
		return "", false, fmt.Errorf("has type %T, want string", v)
	}
	str = strings.TrimSpace(str)
	return str, str != "", nil
}

// coerceString renders any scalar as a string, for fields where the model
// sometimes emits numbers.
func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64, bool:
		return fmt.Sprint(val)
	default:
		return ""
	}
}

// getAmountField reads a number, a numeric string or null. ok is false for a
// missing or null field.
func getAmountField(m map[string]any, key string) (d decimal.Decimal, ok bool, err error) {
	v, present := m[key]
	if !present || v == nil {
		return decimal.Zero, false, nil
	}
	d, err = toDecimal(v)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%q is not a number", val)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(val, ",", ""))
		s = strings.TrimLeft(s, "£$€")
		if s == "" {
			return decimal.Zero, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%q is not a number", val)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("has type %T, want number", v)
	}
}

// decodeJSON decodes cleaned model text keeping numbers exact.
func decodeJSON(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(cleanModelJSON(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// cleanModelJSON strips Markdown fences and surrounding prose the model may
// add despite instructions, keeping the outermost JSON array or object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}
	closer := "]"
	if s[start] == '{' {
		closer = "}"
	}
	if end := strings.LastIndex(s, closer); end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
