package action

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Input is the merged event data and step configuration of one action.
// Keys are snake_case; camelCase spellings of the same key are accepted
// for definitions written against older payloads.
type Input map[string]interface{}

// lookup returns the value for key, or for its camelCase spelling. A key
// present with a nil value counts as absent.
func (in Input) lookup(key string) (interface{}, bool) {
	if v, ok := in[key]; ok && v != nil {
		return v, true
	}
	if camel := camelCase(key); camel != key {
		if v, ok := in[camel]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether key is present with a non-nil value
func (in Input) Has(key string) bool {
	_, ok := in.lookup(key)
	return ok
}

// String returns the trimmed string value of the first key that is set
func (in Input) String(keys ...string) string {
	for _, key := range keys {
		if v, ok := in.lookup(key); ok {
			if s := strings.TrimSpace(cast.ToString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// Int64 returns the value as an id. ok is false when the key is missing,
// not numeric, or not positive.
func (in Input) Int64(key string) (int64, bool) {
	v, ok := in.lookup(key)
	if !ok {
		return 0, false
	}
	n, err := cast.ToInt64E(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Int64Ptr is Int64 returning nil when unset
func (in Input) Int64Ptr(key string) *int64 {
	n, ok := in.Int64(key)
	if !ok {
		return nil
	}
	return &n
}

// Bool returns the value as a bool, or def when unset
func (in Input) Bool(key string, def bool) bool {
	v, ok := in.lookup(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Int returns the value as an int, or def when unset or not numeric
func (in Input) Int(key string, def int) int {
	v, ok := in.lookup(key)
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}

// Decimal parses a money or quantity value given as a string or number
func (in Input) Decimal(key string) (decimal.Decimal, bool) {
	v, ok := in.lookup(key)
	if !ok {
		return decimal.Zero, false
	}
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		return d, err == nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// NullDecimal is Decimal wrapped for optional columns
func (in Input) NullDecimal(key string) decimal.NullDecimal {
	d, ok := in.Decimal(key)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// Time parses an RFC 3339 timestamp or date
func (in Input) Time(key string) *time.Time {
	v, ok := in.lookup(key)
	if !ok {
		return nil
	}
	t, err := cast.ToTimeE(v)
	if err != nil || t.IsZero() {
		return nil
	}
	return &t
}

// Map returns a nested object, e.g. template variables
func (in Input) Map(key string) map[string]interface{} {
	v, ok := in.lookup(key)
	if !ok {
		return nil
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil
	}
	return m
}

// Vars returns the values used to fill {{var}} placeholders: every input
// value, overridden by the explicit "variables" object when present
func (in Input) Vars() map[string]interface{} {
	vars := make(map[string]interface{}, len(in))
	for k, v := range in {
		if v != nil {
			vars[k] = v
		}
	}
	for k, v := range in.Map("variables") {
		vars[k] = v
	}
	return vars
}

func camelCase(key string) string {
	if !strings.Contains(key, "_") {
		return key
	}
	parts := strings.Split(key, "_")
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
