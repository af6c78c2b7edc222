// Package normalize turns raw backend payloads into core records.
//
// Every function here is total: absent or malformed fields fall back to a
// zero value instead of failing, so a single odd record never breaks a view.
package normalize

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"smartbill/internal/core"
)

// Raw is one backend record keyed by JSON field name.
type Raw map[string]json.RawMessage

// NormalizeBill maps a raw bill document onto core.BillRecord.
func NormalizeBill(raw Raw) core.BillRecord {
	return core.BillRecord{
		ID:          raw.text("_id", "id"),
		Category:    raw.category("billType", "category", "billCategory"),
		TotalAmount: raw.amount("totalAmount"),
		BillDate:    raw.time("billDate"),
		Taxes:       raw.taxes("taxes"),
		AISummary:   raw.text("aiSummary"),
		Analysis:    raw.text("analysis"),
		Suggestions: raw.suggestions("suggestions"),
		FileURL:     raw.text("fileUrl"),
	}
}

// NormalizeSuggestion maps a raw optimization run onto core.SuggestionRecord.
func NormalizeSuggestion(raw Raw) core.SuggestionRecord {
	return core.SuggestionRecord{
		ID:              raw.text("_id", "id"),
		Category:        raw.category("billCategory", "billType", "category"),
		SavingsEstimate: raw.amount("savingsEstimate"),
		CreatedAt:       raw.time("createdAt"),
	}
}

// NormalizeProfile reads the user object of the dashboard payload.
func NormalizeProfile(raw Raw) core.Profile {
	return core.Profile{
		Name:  raw.text("name"),
		Email: raw.text("email"),
	}
}

func Bills(raws []Raw) []core.BillRecord {
	out := make([]core.BillRecord, 0, len(raws))
	for _, r := range raws {
		out = append(out, NormalizeBill(r))
	}
	return out
}

func Suggestions(raws []Raw) []core.SuggestionRecord {
	out := make([]core.SuggestionRecord, 0, len(raws))
	for _, r := range raws {
		out = append(out, NormalizeSuggestion(r))
	}
	return out
}

// DecodeBills decodes a JSON array of bill documents.
func DecodeBills(data []byte) ([]core.BillRecord, error) {
	var raws []Raw
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	return Bills(raws), nil
}

// DecodeSuggestions decodes a JSON array of optimization runs.
func DecodeSuggestions(data []byte) ([]core.SuggestionRecord, error) {
	var raws []Raw
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, err
	}
	return Suggestions(raws), nil
}

func (r Raw) lookup(keys ...string) json.RawMessage {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || bytes.Equal(v, []byte("null")) {
			continue
		}
		return v
	}
	return nil
}

func (r Raw) text(keys ...string) string {
	v := r.lookup(keys...)
	if v == nil {
		return ""
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	case '{':
		// Mongo extended JSON ids arrive as {"$oid": "..."}.
		var obj struct {
			OID string `json:"$oid"`
		}
		if json.Unmarshal(v, &obj) == nil {
			return obj.OID
		}
		return ""
	default:
		if isNumber(v) {
			return string(v)
		}
		return ""
	}
}

func (r Raw) amount(keys ...string) decimal.Decimal {
	v := r.lookup(keys...)
	if v == nil {
		return decimal.Zero
	}
	s := string(v)
	if v[0] == '"' {
		if err := json.Unmarshal(v, &s); err != nil {
			return decimal.Zero
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	} else if !isNumber(v) {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (r Raw) time(keys ...string) time.Time {
	v := r.lookup(keys...)
	if v == nil {
		return time.Time{}
	}
	if isNumber(v) {
		ms, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return time.Time{}
		}
		return time.UnixMilli(ms).UTC()
	}
	var s string
	if v[0] != '"' || json.Unmarshal(v, &s) != nil {
		return time.Time{}
	}
	return parseTime(s)
}

func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (r Raw) category(keys ...string) core.Category {
	if c, ok := core.ParseCategory(r.text(keys...)); ok {
		return c
	}
	return core.Other
}

func (r Raw) taxes(key string) []core.Tax {
	out := []core.Tax{}
	v := r.lookup(key)
	if v == nil || v[0] != '[' {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return out
	}
	for _, item := range items {
		var tax Raw
		if err := json.Unmarshal(item, &tax); err != nil || tax == nil {
			continue
		}
		out = append(out, core.Tax{
			Name:   tax.text("name"),
			Amount: tax.amount("amount"),
		})
	}
	return out
}

func (r Raw) suggestions(key string) core.Suggestions {
	v := r.lookup(key)
	if v == nil {
		return nil
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return nil
		}
		return core.SuggestionText(s)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			return nil
		}
		list := core.SuggestionList{}
		for _, item := range items {
			var s string
			if json.Unmarshal(item, &s) == nil {
				list = append(list, s)
			}
		}
		return list
	default:
		return nil
	}
}

func isNumber(v []byte) bool {
	return len(v) > 0 && (v[0] == '-' || (v[0] >= '0' && v[0] <= '9'))
}
