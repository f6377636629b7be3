package table

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopmonkeyus/tablekit/internal"
)

func isNil(val any) bool {
	if val == nil {
		return true
	}
	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// toInt64 coerces numbers and numeric strings. The second result is false when val is not numeric,
// the third is false when it is numeric but not integral.
func toInt64(val any) (int64, bool, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true, true
	case int8:
		return int64(v), true, true
	case int16:
		return int64(v), true, true
	case int32:
		return int64(v), true, true
	case int64:
		return v, true, true
	case uint:
		return int64(v), true, true
	case uint8:
		return int64(v), true, true
	case uint16:
		return int64(v), true, true
	case uint32:
		return int64(v), true, true
	case uint64:
		return int64(v), true, true
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case json.Number:
		return toInt64(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false, false
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return floatToInt64(f)
		}
	case []byte:
		return toInt64(string(v))
	}
	return 0, false, false
}

func floatToInt64(f float64) (int64, bool, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, false
	}
	if f != math.Trunc(f) {
		return 0, true, false
	}
	return int64(f), true, true
}

func toBool(val any) (bool, bool) {
	switch v := val.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "1", "yes":
			return true, true
		case "false", "f", "0", "no":
			return false, true
		}
		return false, false
	case []byte:
		return toBool(string(v))
	}
	if i, ok, integral := toInt64(val); ok && integral && (i == 0 || i == 1) {
		return i == 1, true
	}
	return false, false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func toTime(val any) (time.Time, bool) {
	switch v := val.(type) {
	case time.Time:
		return v.UTC(), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return v.UTC(), true
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	case []byte:
		return toTime(string(v))
	}
	return time.Time{}, false
}

func toRow(val any) (internal.Row, bool) {
	switch v := val.(type) {
	case internal.Row:
		return v, true
	case map[string]any:
		return internal.Row(v), true
	}
	return nil, false
}

func toList(val any) ([]any, bool) {
	switch v := val.(type) {
	case []any:
		return v, true
	case []internal.Row:
		res := make([]any, len(v))
		for i, r := range v {
			res[i] = r
		}
		return res, true
	case []map[string]any:
		res := make([]any, len(v))
		for i, r := range v {
			res[i] = internal.Row(r)
		}
		return res, true
	}
	rv := reflect.ValueOf(val)
	if val != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		res := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			res[i] = rv.Index(i).Interface()
		}
		return res, true
	}
	return nil, false
}

// normalizeKey makes keys comparable: integral values become int64, everything else a string.
func normalizeKey(val any) any {
	if isNil(val) {
		return nil
	}
	if i, ok, integral := toInt64(val); ok && integral {
		if _, isString := val.(string); !isString || strconv.FormatInt(i, 10) == strings.TrimSpace(val.(string)) {
			return i
		}
	}
	return fmt.Sprint(val)
}

// scalarKey normalizes a raw key: a string or anything numeric, json.Number included.
func scalarKey(val any) (any, bool) {
	if _, ok := val.(string); ok {
		return normalizeKey(val), true
	}
	if _, ok, _ := toInt64(val); ok {
		return normalizeKey(val), true
	}
	return nil, false
}

func keysEqual(a, b any) bool {
	return normalizeKey(a) == normalizeKey(b)
}

// sortKeys orders normalized keys with integers first.
func sortKeys(keys []any) {
	sort.SliceStable(keys, func(i, j int) bool {
		a, aInt := keys[i].(int64)
		b, bInt := keys[j].(int64)
		switch {
		case aInt && bInt:
			return a < b
		case aInt != bInt:
			return aInt
		}
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
