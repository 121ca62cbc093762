package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TransformedRecord is the standardized envelope every record gets,
// regardless of source. Exactly one of the nested payloads is populated
// for the known sources; unknown sources carry the envelope alone.
type TransformedRecord struct {
	RecordID      string         `json:"record_id"`
	Source        string         `json:"source"`
	ExtractedAt   string         `json:"extracted_at"`
	ExtractedDate string         `json:"extracted_date"`
	RawData       any            `json:"raw_data"`
	Product       map[string]any `json:"product,omitempty"`
	Sale          map[string]any `json:"sale,omitempty"`
	Customer      map[string]any `json:"customer,omitempty"`
}

// Transform maps raw records into the standardized format. It is pure and
// never fails: missing fields fall back to zero values.
func Transform(sourceName string, rawData []any, now time.Time) []TransformedRecord {
	transformed := make([]TransformedRecord, 0, len(rawData))

	for idx, raw := range rawData {
		record := asMap(raw)

		tr := TransformedRecord{
			RecordID:      recordID(sourceName, idx, now, raw),
			Source:        sourceName,
			ExtractedAt:   now.Format(time.RFC3339),
			ExtractedDate: now.Format("2006-01-02"),
			RawData:       raw,
		}

		switch sourceName {
		case "marketing":
			tr.Product = map[string]any{
				"id":          pickAny(record, "id"),
				"title":       pickString(record, "title"),
				"price":       pickFloat(record, "price"),
				"category":    pickString(record, "category"),
				"description": truncate(pickString(record, "description"), 200),
				"image":       pickString(record, "image"),
				"rating":      asMap(pickAny(record, "rating")),
			}

		case "sales":
			tr.Sale = map[string]any{
				"id":      pickAny(record, "id"),
				"user_id": pickAny(record, "userId"),
				"title":   pickString(record, "title"),
				"body":    truncate(pickString(record, "body"), 200),
			}

		case "crm":
			if _, ok := record["name"]; ok {
				name := asMap(record["name"])
				location := asMap(pickAny(record, "location"))
				registered := asMap(pickAny(record, "registered"))
				first := pickString(name, "first")
				last := pickString(name, "last")
				tr.Customer = map[string]any{
					"first_name":      first,
					"last_name":       last,
					"full_name":       fmt.Sprintf("%s %s", first, last),
					"email":           pickString(record, "email"),
					"phone":           pickString(record, "phone"),
					"country":         pickString(location, "country"),
					"city":            pickString(location, "city"),
					"registered_date": pickString(registered, "date"),
				}
			}
		}

		transformed = append(transformed, tr)
	}

	return transformed
}

// recordID hashes source, index, timestamp and the serialized record down
// to 12 hex characters. Unique per run, not stable across re-runs.
func recordID(sourceName string, idx int, now time.Time, raw any) string {
	b, _ := json.Marshal(raw)
	material := fmt.Sprintf("%s_%d_%s_%s", sourceName, idx, now.Format(time.RFC3339Nano), b)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])[:12]
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func pickString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func pickAny(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

// pickFloat reads a numeric field that upstream APIs return either as a
// number or a numeric string.
func pickFloat(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func asMap(v any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
