package cmdconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Effective is the resolved option set for one invocation. It is computed
// fresh for every run and never persisted as a whole.
type Effective struct {
	values  map[string]any
	sources map[string]string
}

// Keys returns the resolved keys in sorted order.
func (e Effective) Keys() []string {
	return sortedKeys(e.values)
}

// Get returns the raw value; ok is false when the key is unset.
func (e Effective) Get(key string) (any, bool) {
	v, ok := e.values[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// IsSet reports whether any layer supplied key.
func (e Effective) IsSet(key string) bool {
	_, ok := e.Get(key)
	return ok
}

// Source names the layer that supplied key, or "" when unset.
func (e Effective) Source(key string) string {
	return e.sources[key]
}

// Set overrides a value after resolution (for derived values such as a
// project name defaulted from the working directory).
func (e Effective) Set(key string, v any, source string) {
	e.values[key] = v
	if v == nil {
		delete(e.sources, key)
		return
	}
	e.sources[key] = source
}

// String returns the value as a string.
func (e Effective) String(key string) (string, bool) {
	v, ok := e.Get(key)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// Bool returns the value as a bool. Strings are parsed with strconv.ParseBool.
func (e Effective) Bool(key string) (bool, error) {
	v, ok := e.Get(key)
	if !ok {
		return false, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("%s: invalid boolean %q", key, b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("%s: expected boolean, got %T", key, v)
	}
}

// Int returns the value as an int; ok is false when unset.
func (e Effective) Int(key string) (int, bool, error) {
	v, ok := e.Get(key)
	if !ok {
		return 0, false, nil
	}
	n, err := toInt(v)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// Strings returns a list value. A single string is split on commas, matching
// the command-line form "--ignoreFiles a,b".
func (e Effective) Strings(key string) []string {
	v, ok := e.Get(key)
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...)
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return SplitList(s, ",")
	default:
		return []string{fmt.Sprint(v)}
	}
}

// Decode copies the resolved values into a struct tagged with `mapstructure`.
// Weak typing lets "20" decode into an int field and a bare string into a
// one-element slice.
func (e Effective) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ZeroFields:       false,
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(e.values); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}

// SplitList splits s on sep, trimming blanks and dropping empty entries.
func SplitList(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}
