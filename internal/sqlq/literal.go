package sqlq

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// literalStyle describes how a dialect spells literals.
type literalStyle struct {
	quoteString func(string) string
	trueValue   string
	falseValue  string
	timeFormat  string
}

func doubleQuoteString(str string) string {
	return `'` + strings.ReplaceAll(str, `'`, `''`) + `'`
}

// backslashQuoteString escapes for stores which treat backslash as an escape inside literals.
func backslashQuoteString(str string) string {
	str = strings.ReplaceAll(str, `\`, `\\`)
	return `'` + strings.ReplaceAll(str, `'`, `''`) + `'`
}

func (s literalStyle) quote(arg any) string {
	switch arg := arg.(type) {
	case nil:
		return "NULL"
	case int:
		return strconv.FormatInt(int64(arg), 10)
	case int8:
		return strconv.FormatInt(int64(arg), 10)
	case int16:
		return strconv.FormatInt(int64(arg), 10)
	case int32:
		return strconv.FormatInt(int64(arg), 10)
	case int64:
		return strconv.FormatInt(arg, 10)
	case uint:
		return strconv.FormatUint(uint64(arg), 10)
	case uint32:
		return strconv.FormatUint(uint64(arg), 10)
	case uint64:
		return strconv.FormatUint(arg, 10)
	case float32:
		return strconv.FormatFloat(float64(arg), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(arg, 'f', -1, 64)
	case json.Number:
		return arg.String()
	case bool:
		if arg {
			return s.trueValue
		}
		return s.falseValue
	case string:
		return s.quoteString(arg)
	case []byte:
		return s.quoteString(string(arg))
	case time.Time:
		return s.quoteString(arg.UTC().Format(s.timeFormat))
	case *time.Time:
		if arg == nil {
			return "NULL"
		}
		return s.quoteString(arg.UTC().Format(s.timeFormat))
	case fmt.Stringer:
		return s.quoteString(arg.String())
	}
	value := reflect.ValueOf(arg)
	if value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return "NULL"
		}
		return s.quote(value.Elem().Interface())
	}
	buf, _ := json.Marshal(arg)
	return s.quoteString(string(buf))
}
