package runner

import (
	"encoding/json"
	"strings"
)

// PayloadKeys are the result fields a unit id is read from, in order.
var PayloadKeys = []string{"url", "linkedin_url", "linkedinUrl"}

// Identified is implemented by result records that know their unit id.
type Identified interface {
	UnitID() string
}

// PayloadID derives a unit id from a result payload. Identified values
// answer directly; anything else is read as a JSON object. It returns ""
// when the payload carries no id.
func PayloadID(v interface{}) string {
	switch p := v.(type) {
	case Identified:
		return strings.TrimSpace(p.UnitID())
	case map[string]interface{}:
		for _, key := range PayloadKeys {
			if s, ok := p[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	case json.RawMessage:
		var m map[string]interface{}
		if err := json.Unmarshal(p, &m); err == nil {
			return PayloadID(m)
		}
	case nil:
	default:
		// named map types and structs with matching json tags
		data, err := json.Marshal(p)
		if err != nil {
			return ""
		}
		return PayloadID(json.RawMessage(data))
	}
	return ""
}
