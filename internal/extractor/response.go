package extractor

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
)

var (
	nameKeys      = []string{"name", "指标名称"}
	valueKeys     = []string{"value", "数值"}
	unitKeys      = []string{"unit", "单位"}
	rangeKeys     = []string{"reference_range", "参考范围", "range", "参考值", "reference"}
	abnormalKeys  = []string{"is_abnormal", "是否异常", "abnormal", "status", "状态"}
	abnormalWords = map[string]bool{
		"true": true, "yes": true, "1": true,
		"异常": true, "是": true, "high": true, "low": true,
	}
)

// ExtractReadings pulls indicator readings out of a model reply. It never
// fails: anything it cannot make sense of yields an empty slice.
func ExtractReadings(content string) []models.Reading {
	if items, ok := parseStrict(content); ok {
		return items
	}

	body := stripFence(strings.TrimSpace(content))
	if items, ok := parseStrict(body); ok {
		return items
	}

	start := strings.Index(body, "[")
	end := strings.LastIndex(body, "]")
	if start < 0 || end < start {
		return []models.Reading{}
	}
	array := body[start : end+1]

	if items, ok := parseStrict(array); ok {
		return items
	}
	if items, ok := parsePermissive(array); ok {
		return items
	}
	return []models.Reading{}
}

func stripFence(s string) string {
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
	default:
		return s
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseStrict accepts only an array of objects carrying all five canonical
// keys with the canonical types. Extra keys are ignored.
func parseStrict(s string) ([]models.Reading, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}

	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, false
	}

	items := make([]models.Reading, 0, len(raw))
	for _, obj := range raw {
		if obj == nil {
			return nil, false
		}
		var r models.Reading
		if !strictString(obj, "name", &r.Name) ||
			!strictString(obj, "value", &r.Value) ||
			!strictString(obj, "unit", &r.Unit) ||
			!strictString(obj, "reference_range", &r.ReferenceRange) {
			return nil, false
		}
		v, ok := obj["is_abnormal"]
		if !ok || isNull(v) || json.Unmarshal(v, &r.IsAbnormal) != nil {
			return nil, false
		}
		items = append(items, r)
	}
	return items, true
}

func strictString(obj map[string]json.RawMessage, key string, dst *string) bool {
	v, ok := obj[key]
	if !ok || isNull(v) {
		return false
	}
	return json.Unmarshal(v, dst) == nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func parsePermissive(s string) ([]models.Reading, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var values []any
	if err := dec.Decode(&values); err != nil {
		return nil, false
	}
	// The whole slice must be one array; "[...] 见附表 [1]" is not.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, false
	}

	items := make([]models.Reading, 0, len(values))
	for _, v := range values {
		obj, ok := v.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, models.Reading{
			Name:           asString(lookup(obj, nameKeys)),
			Value:          asScalar(lookup(obj, valueKeys)),
			Unit:           asString(lookup(obj, unitKeys)),
			ReferenceRange: asRange(lookup(obj, rangeKeys)),
			IsAbnormal:     asAbnormal(lookup(obj, abnormalKeys)),
		})
	}
	return items, true
}

// lookup returns the value of the first key present, in priority order.
func lookup(obj map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asScalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return ""
}

func asRange(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = asScalar(p)
		}
		return strings.Join(parts, "-")
	}
	return ""
}

func asAbnormal(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return abnormalWords[s] ||
			strings.Contains(s, "↑") ||
			strings.Contains(s, "↓") ||
			strings.Contains(s, "+")
	}
	return false
}
