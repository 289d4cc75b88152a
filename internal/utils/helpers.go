package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// IsAbsoluteURL reports whether s carries an http or https scheme
func IsAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// JoinURL appends ref below base. Absolute refs are returned unchanged, and a
// leading slash on ref does not escape base's path.
func JoinURL(base, ref string) string {
	if IsAbsoluteURL(ref) {
		return ref
	}
	b, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimLeft(ref, "/"))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// ResolveURL resolves ref against base with standard RFC 3986 semantics, so an
// absolute path replaces base's path entirely.
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// Origin returns scheme://host for an absolute URL, or "" when raw has no host
func Origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}

// FirstPresent returns the value of the first key in keys that is present in m
// with a non-nil value
func FirstPresent(m map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// FirstTruthy returns the value of the first key in keys whose value is truthy
func FirstTruthy(m map[string]any, keys []string) (any, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok && Truthy(v) {
			return v, true
		}
	}
	return nil, false
}

// Truthy treats nil, false, zero numbers and empty strings, slices and maps as false
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

// Stringify renders a decoded JSON value as text. Strings are returned as-is.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any, map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}
