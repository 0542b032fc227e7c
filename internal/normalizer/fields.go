package normalizer

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Upstream JSON is decoded into map[string]any, so numbers arrive as float64 or
// json.Number and ids may be either numbers or strings.

func stringField(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := asString(item[key]); s != "" {
			return s
		}
	}
	return ""
}

func imageField(item map[string]any, keys ...string) string {
	s := stringField(item, keys...)
	if strings.HasPrefix(s, "/") {
		return imageBaseURL + s
	}
	return s
}

func intField(item map[string]any, keys ...string) int {
	for _, key := range keys {
		if f, ok := asFloat(item[key]); ok && f > 0 {
			return int(f)
		}
	}
	return 0
}

func floatField(item map[string]any, keys ...string) float64 {
	for _, key := range keys {
		if f, ok := asFloat(item[key]); ok && f > 0 {
			return f
		}
	}
	return 0
}

// minutesField accepts a number of minutes or strings such as "120 min"
func minutesField(item map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := item[key].(type) {
		case string:
			digits := strings.TrimSpace(v)
			end := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' })
			if end >= 0 {
				digits = digits[:end]
			}
			if n, err := strconv.Atoi(digits); err == nil && n > 0 {
				return n
			}
		default:
			if f, ok := asFloat(v); ok && f > 0 {
				return int(f)
			}
		}
	}
	return 0
}

// namesField accepts a list of strings, a list of {name} objects or a comma separated string
func namesField(item map[string]any, keys ...string) []string {
	for _, key := range keys {
		var names []string
		switch v := item[key].(type) {
		case []any:
			for _, entry := range v {
				switch e := entry.(type) {
				case string:
					names = appendName(names, e)
				case map[string]any:
					names = appendName(names, asString(e["name"]))
				}
			}
		case []string:
			for _, e := range v {
				names = appendName(names, e)
			}
		case string:
			for _, e := range strings.Split(v, ",") {
				names = appendName(names, e)
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	return nil
}

func appendName(names []string, name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return names
	}
	return append(names, name)
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		if t == 0 {
			return ""
		}
		return strconv.Itoa(t)
	case int64:
		if t == 0 {
			return ""
		}
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
