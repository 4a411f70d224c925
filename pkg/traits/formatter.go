package traits

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format maps traits onto Airtable column values. Values that carry no
// data ("", "-1", -1, null, empty lists) are left out, as are values that
// cannot be coerced to their column's type.
func Format(t Traits) map[string]interface{} {
	fields := make(map[string]interface{})
	for _, c := range Columns {
		if v, ok := c.value(t.lookup(c.Section, c.Key)); ok {
			fields[c.Name] = v
		}
	}
	return fields
}

func (c Column) value(raw interface{}) (interface{}, bool) {
	if isEmpty(raw) {
		return nil, false
	}
	switch c.Kind {
	case KindNumber:
		return toNumber(raw)
	case KindCheckbox:
		return toBool(raw)
	case KindSelect:
		return toChoice(raw)
	default:
		s := toText(raw)
		return s, s != ""
	}
}

// isEmpty reports whether v is one of the "no data" markers.
func isEmpty(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(x)
		return s == "" || s == "-1" || strings.EqualFold(s, "null")
	case float64:
		return x == -1
	case int:
		return x == -1
	case json.Number:
		f, err := x.Float64()
		return err == nil && f == -1
	case []interface{}:
		for _, item := range x {
			if !isEmpty(item) {
				return false
			}
		}
		return true
	case []string:
		for _, item := range x {
			if !isEmpty(item) {
				return false
			}
		}
		return true
	}
	return false
}

func toText(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case []interface{}:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if !isEmpty(item) {
				parts = append(parts, toText(item))
			}
		}
		return strings.Join(parts, ", ")
	case []string:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if !isEmpty(item) {
				parts = append(parts, strings.TrimSpace(item))
			}
		}
		return strings.Join(parts, ", ")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case map[string]interface{}:
		data, _ := json.Marshal(x)
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}

func toNumber(v interface{}) (interface{}, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case json.Number:
		var err error
		if f, err = x.Float64(); err != nil {
			return nil, false
		}
	case string:
		var err error
		if f, err = strconv.ParseFloat(strings.TrimSpace(x), 64); err != nil {
			return nil, false
		}
	default:
		return nil, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f == -1 {
		return nil, false
	}
	return f, true
}

func toBool(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, false
		}
		return b, true
	}
	return nil, false
}

func toChoice(v interface{}) (interface{}, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	for _, ch := range confidenceChoices {
		if strings.EqualFold(strings.TrimSpace(s), ch.Name) {
			return ch.Name, true
		}
	}
	return nil, false
}
