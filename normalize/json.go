package normalize

import (
	"encoding/json"
	"strings"

	"github.com/buger/jsonparser"
)

// jsonToMarkdown renders a JSON document as Markdown, preserving key order:
// top-level keys become headings, nested keys bold labels and arrays bullet
// lines. Invalid JSON is wrapped in a fenced code block.
func jsonToMarkdown(content string) string {
	data := []byte(strings.TrimSpace(content))
	if !json.Valid(data) {
		return "```\n" + strings.TrimSpace(content) + "\n```"
	}
	value, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return "```\n" + strings.TrimSpace(content) + "\n```"
	}

	var sb strings.Builder
	renderJSON(&sb, value, typ, 0)
	return collapseBlankLines(sb.String())
}

func renderJSON(sb *strings.Builder, value []byte, typ jsonparser.ValueType, depth int) {
	switch typ {
	case jsonparser.Object:
		renderObject(sb, value, depth)
	case jsonparser.Array:
		renderArray(sb, value, depth)
	default:
		sb.WriteString(jsonScalar(value, typ))
		sb.WriteString("\n\n")
	}
}

func renderObject(sb *strings.Builder, value []byte, depth int) {
	_ = jsonparser.ObjectEach(value, func(key, v []byte, typ jsonparser.ValueType, _ int) error {
		label := jsonKey(key)
		if depth == 0 {
			sb.WriteString("# " + label + "\n\n")
			renderJSON(sb, v, typ, depth+1)
			return nil
		}
		switch typ {
		case jsonparser.Object:
			sb.WriteString(indent(depth-1) + "**" + label + "**:\n\n")
			renderObject(sb, v, depth+1)
		case jsonparser.Array:
			sb.WriteString(indent(depth-1) + "**" + label + "**:\n")
			renderArray(sb, v, depth)
		default:
			sb.WriteString(indent(depth-1) + "**" + label + "**: " + jsonScalar(v, typ) + "\n")
		}
		return nil
	})
	sb.WriteString("\n")
}

func renderArray(sb *strings.Builder, value []byte, depth int) {
	prefix := indent(max(depth-1, 0)) + "- "
	_, _ = jsonparser.ArrayEach(value, func(v []byte, typ jsonparser.ValueType, _ int, err error) {
		if err != nil {
			return
		}
		switch typ {
		case jsonparser.Object:
			sb.WriteString(prefix + inlineObject(v) + "\n")
		case jsonparser.Array:
			renderArray(sb, v, depth+1)
		default:
			sb.WriteString(prefix + jsonScalar(v, typ) + "\n")
		}
	})
	sb.WriteString("\n")
}

// inlineObject flattens an object inside an array to "key: value, ..." so
// that it fits on one bullet line.
func inlineObject(value []byte) string {
	var parts []string
	_ = jsonparser.ObjectEach(value, func(key, v []byte, typ jsonparser.ValueType, _ int) error {
		switch typ {
		case jsonparser.Object, jsonparser.Array:
			parts = append(parts, jsonKey(key)+": "+string(v))
		default:
			parts = append(parts, jsonKey(key)+": "+jsonScalar(v, typ))
		}
		return nil
	})
	return strings.Join(parts, ", ")
}

func jsonKey(key []byte) string {
	s, err := jsonparser.ParseString(key)
	if err != nil {
		return string(key)
	}
	return s
}

func jsonScalar(v []byte, typ jsonparser.ValueType) string {
	if typ == jsonparser.String {
		s, err := jsonparser.ParseString(v)
		if err != nil {
			return string(v)
		}
		return s
	}
	return string(v)
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}
