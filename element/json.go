package element

import (
	"encoding/json"
	"fmt"
)

// Reserved metadata keys. Any other key lands in Meta.Extra.
const (
	metaLanguage = "language"
	metaURL      = "url"
	metaElements = "elements"
)

type wireElement struct {
	Type     Type            `json:"type"`
	Content  string          `json:"content"`
	Level    *int            `json:"level"`
	Metadata json.RawMessage `json:"metadata"`
}

// MarshalJSON encodes the element as {type, content, level, metadata}.
// level is null for non-heading elements; metadata is an object, empty when
// the element has none.
func (e Element) MarshalJSON() ([]byte, error) {
	w := wireElement{Type: e.Type, Content: e.Content}
	if e.Type == TypeHeading {
		lvl := e.Level
		w.Level = &lvl
	}
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return nil, err
	}
	w.Metadata = meta
	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire shape produced by MarshalJSON.
func (e *Element) UnmarshalJSON(data []byte) error {
	var w wireElement
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Type.Valid() {
		return fmt.Errorf("element: unknown type %q", w.Type)
	}
	*e = Element{Type: w.Type, Content: w.Content}
	if w.Level != nil && w.Type == TypeHeading {
		e.Level = *w.Level
	}
	if len(w.Metadata) > 0 && string(w.Metadata) != "null" {
		if err := json.Unmarshal(w.Metadata, &e.Meta); err != nil {
			return fmt.Errorf("element metadata: %w", err)
		}
	}
	return nil
}

// MarshalJSON flattens the typed variants into one metadata object.
func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.Code != nil {
		out[metaLanguage] = m.Code.Language
	}
	if m.Link != nil {
		out[metaURL] = m.Link.URL
	}
	if len(m.Children) > 0 {
		out[metaElements] = m.Children
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits a metadata object back into its typed variants.
func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Meta{}
	for k, v := range raw {
		switch k {
		case metaLanguage:
			var lang string
			if err := json.Unmarshal(v, &lang); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			m.Code = &CodeMeta{Language: lang}
		case metaURL:
			var url string
			if err := json.Unmarshal(v, &url); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			m.Link = &LinkMeta{URL: url}
		case metaElements:
			if err := json.Unmarshal(v, &m.Children); err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			if len(m.Children) == 0 {
				m.Children = nil
			}
		default:
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				// Non-string extras are kept verbatim.
				s = string(v)
			}
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k] = s
		}
	}
	return nil
}

// MarshalList encodes a sequence of elements.
func MarshalList(elems []Element) ([]byte, error) {
	if elems == nil {
		elems = []Element{}
	}
	return json.Marshal(elems)
}

// UnmarshalList decodes a sequence of elements.
func UnmarshalList(data []byte) ([]Element, error) {
	var elems []Element
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, err
	}
	return elems, nil
}
