package sync

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultExtrasGroup is the customization group used for extras that carry no
// category of their own
const DefaultExtrasGroup = "Additional Items"

// ExtraItem is one selected extra after shape resolution
type ExtraItem struct {
	Name     string
	Price    decimal.Decimal
	Category string
}

type extrasKind int

const (
	extrasNone extrasKind = iota
	extrasRaw
	extrasList
	extrasStructured
)

// ExtrasValue models the string-or-array duality of the extras field as an
// explicit sum type: a raw delimiter-joined string, a list of plain strings,
// or a list of structured objects. The shape is resolved exactly once, at the
// normalizer boundary; downstream code only ever sees the canonical mapping.
type ExtrasValue struct {
	kind       extrasKind
	raw        string
	list       []string
	structured []ExtraItem
}

// structuredExtra is the wire shape of one structured extras element
type structuredExtra struct {
	Name     string      `json:"name"`
	Title    string      `json:"title"`
	Price    flexDecimal `json:"price"`
	Category string      `json:"category"`
	Group    string      `json:"group"`
}

// UnmarshalJSON detects which shape the payload used. Undecodable values
// coerce to empty rather than failing the whole order.
func (v *ExtrasValue) UnmarshalJSON(data []byte) error {
	*v = ExtrasValue{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		v.kind = extrasRaw
		v.raw = s
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(data, &elements); err != nil {
			return nil
		}
		v.decodeElements(elements)
	}
	// Any other shape (number, object) coerces to empty
	return nil
}

// decodeElements classifies an array form: all-strings becomes a plain list,
// anything containing objects becomes structured, with stray strings folded
// in as name-only items
func (v *ExtrasValue) decodeElements(elements []json.RawMessage) {
	hasObject := false
	for _, el := range elements {
		if t := bytes.TrimSpace(el); len(t) > 0 && t[0] == '{' {
			hasObject = true
			break
		}
	}

	for _, el := range elements {
		t := bytes.TrimSpace(el)
		if len(t) == 0 {
			continue
		}
		switch t[0] {
		case '"':
			var s string
			if err := json.Unmarshal(t, &s); err != nil || strings.TrimSpace(s) == "" {
				continue
			}
			if hasObject {
				v.structured = append(v.structured, ExtraItem{Name: strings.TrimSpace(s), Price: decimal.Zero})
			} else {
				v.list = append(v.list, strings.TrimSpace(s))
			}
		case '{':
			var se structuredExtra
			if err := json.Unmarshal(t, &se); err != nil {
				continue
			}
			name := se.Name
			if name == "" {
				name = se.Title
			}
			if strings.TrimSpace(name) == "" {
				continue
			}
			category := se.Category
			if category == "" {
				category = se.Group
			}
			v.structured = append(v.structured, ExtraItem{
				Name:     strings.TrimSpace(name),
				Price:    se.Price.Decimal,
				Category: strings.TrimSpace(category),
			})
		}
	}

	if hasObject {
		v.kind = extrasStructured
	} else if len(v.list) > 0 {
		v.kind = extrasList
	}
}

// IsZero reports whether no extras were present
func (v ExtrasValue) IsZero() bool {
	return v.kind == extrasNone
}

// Items resolves the sum type into the canonical flat item list. Raw strings
// split on "," or "+".
func (v ExtrasValue) Items() []ExtraItem {
	switch v.kind {
	case extrasRaw:
		parts := strings.FieldsFunc(v.raw, func(r rune) bool {
			return r == ',' || r == '+'
		})
		items := make([]ExtraItem, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, ExtraItem{Name: p, Price: decimal.Zero})
			}
		}
		return items
	case extrasList:
		items := make([]ExtraItem, 0, len(v.list))
		for _, name := range v.list {
			items = append(items, ExtraItem{Name: name, Price: decimal.Zero})
		}
		return items
	case extrasStructured:
		return v.structured
	default:
		return nil
	}
}
