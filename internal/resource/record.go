package resource

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is a CRM entity as decoded from the API, numbers kept as
// json.Number.
type Record map[string]any

// Text renders the named attribute as plain text.
func (r Record) Text(name string) string {
	switch v := r[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// ID returns the identifier stored under field.
func (r Record) ID(field string) string {
	return r.Text(field)
}

// dateInput trims API timestamps to the YYYY-MM-DD form a date input accepts.
func dateInput(v string) string {
	if v == "" {
		return ""
	}
	if len(v) >= 10 {
		if _, err := time.Parse(time.DateOnly, v[:10]); err == nil {
			return v[:10]
		}
	}
	return strings.TrimSpace(v)
}
