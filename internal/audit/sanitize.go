// Package audit redacts secrets from structured data and keeps the audit trail.
package audit

import (
	"reflect"
	"strings"

	"go.uber.org/zap"
)

// Redacted заменяет значение чувствительного поля целиком
const Redacted = "***REDACTED***"

// Значения token-like полей короче этого редактируются целиком
const minPartialLen = 12

// partialKeep - сколько символов остается с каждой стороны
const partialKeep = 4

var (
	defaultSensitive = []string{"secret", "private_key", "privatekey", "password", "passphrase", "mnemonic", "seed"}
	defaultTokenLike = []string{"token", "api_key", "apikey", "authorization", "signature"}
)

// Sanitizer matches keys case-insensitively by substring.
type Sanitizer struct {
	sensitive []string
	tokenLike []string
}

// NewSanitizer returns a sanitizer with the built-in patterns plus extra
// fully redacted patterns.
func NewSanitizer(extraSensitive ...string) *Sanitizer {
	s := &Sanitizer{
		sensitive: append([]string{}, defaultSensitive...),
		tokenLike: defaultTokenLike,
	}
	for _, p := range extraSensitive {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			s.sensitive = append(s.sensitive, p)
		}
	}
	return s
}

var defaultSanitizer = NewSanitizer()

// Sanitize uses the default sanitizer.
func Sanitize(data map[string]any) map[string]any {
	return defaultSanitizer.Sanitize(data)
}

// Field returns a zap field holding the sanitized copy of data.
func Field(key string, data map[string]any) zap.Field {
	return zap.Any(key, Sanitize(data))
}

// Sanitize returns a redacted deep copy of data. The input is not modified.
func (s *Sanitizer) Sanitize(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = s.sanitizeField(k, v)
	}
	return out
}

func (s *Sanitizer) sanitizeField(key string, value any) any {
	lower := strings.ToLower(key)

	if containsAny(lower, s.sensitive) {
		return Redacted
	}
	if containsAny(lower, s.tokenLike) {
		str, ok := value.(string)
		if !ok {
			return Redacted
		}
		return partial(str)
	}

	return s.sanitizeValue(value)
}

func (s *Sanitizer) sanitizeValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return s.Sanitize(v)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[k] = val
		}
		return s.Sanitize(m)
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.Sanitize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = s.sanitizeValue(item)
		}
		return out
	default:
		return s.sanitizeReflect(reflect.ValueOf(value), value)
	}
}

// sanitizeReflect обходит остальные map со строковыми ключами, slice и array
func (s *Sanitizer) sanitizeReflect(rv reflect.Value, value any) any {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return value
		}
		return s.sanitizeReflect(rv.Elem(), rv.Elem().Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		if rv.IsNil() {
			return map[string]any(nil)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			out[k] = s.sanitizeField(k, iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		// []byte оставляем как есть
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return value
		}
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return []any(nil)
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = s.sanitizeValue(rv.Index(i).Interface())
		}
		return out
	default:
		return value
	}
}

func partial(value string) string {
	if len(value) < minPartialLen {
		return Redacted
	}
	return value[:partialKeep] + "***" + value[len(value)-partialKeep:]
}

func containsAny(key string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}
