package parser

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// BlockKind classifies a content block of a parsed document.
type BlockKind string

const (
	BlockHeading BlockKind = "heading"
	BlockText    BlockKind = "text"
	BlockRow     BlockKind = "row"     // tabular row, cells joined by tabs
	BlockNotice  BlockKind = "notice"  // degraded extraction note
)

// Block is one logical unit of extracted content.
type Block struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text"`
}

// Document is the built-in engine's parsed representation. It is handed to
// the cache as an opaque Handle and rendered on demand by Export.
type Document struct {
	SourceName string  `json:"source_name"`
	Blocks     []Block `json:"blocks"`
	PageCount  int     `json:"page_count,omitempty"`
	HasTables  bool    `json:"has_tables"`
}

// hasStructure reports whether parsing kept anything beyond flat text.
func (d *Document) hasStructure() bool {
	for _, b := range d.Blocks {
		if b.Kind == BlockHeading || b.Kind == BlockRow {
			return true
		}
	}
	return false
}

func (d *Document) render(format Format) (string, error) {
	switch format {
	case FormatText:
		return d.renderText(), nil
	case FormatMarkdown:
		return d.renderMarkdown(), nil
	case FormatHTML:
		return d.renderHTML(), nil
	case FormatJSON:
		return d.renderJSON()
	default:
		return "", &ExportError{Format: format, Cause: "unknown format"}
	}
}

func (d *Document) renderText() string {
	lines := make([]string, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		lines = append(lines, b.Text)
	}
	return strings.Join(lines, "\n")
}

func (d *Document) renderMarkdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", d.SourceName)
	for _, b := range d.Blocks {
		sb.WriteString("\n")
		switch b.Kind {
		case BlockHeading:
			fmt.Fprintf(&sb, "## %s\n", b.Text)
		case BlockRow:
			fmt.Fprintf(&sb, "| %s |\n", strings.ReplaceAll(b.Text, "\t", " | "))
		case BlockNotice:
			fmt.Fprintf(&sb, "> %s\n", b.Text)
		default:
			sb.WriteString(b.Text)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (d *Document) renderHTML() string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<body>\n")
	fmt.Fprintf(&sb, "<h1>%s</h1>\n", html.EscapeString(d.SourceName))
	for _, b := range d.Blocks {
		switch b.Kind {
		case BlockHeading:
			fmt.Fprintf(&sb, "<h2>%s</h2>\n", html.EscapeString(b.Text))
		case BlockRow:
			sb.WriteString("<tr>")
			for _, cell := range strings.Split(b.Text, "\t") {
				fmt.Fprintf(&sb, "<td>%s</td>", html.EscapeString(cell))
			}
			sb.WriteString("</tr>\n")
		case BlockNotice:
			fmt.Fprintf(&sb, "<blockquote>%s</blockquote>\n", html.EscapeString(b.Text))
		default:
			fmt.Fprintf(&sb, "<p>%s</p>\n", html.EscapeString(b.Text))
		}
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

// renderJSON serializes the structured document; the boundary owns turning
// the structured value into text.
func (d *Document) renderJSON() (string, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", &ExportError{Format: FormatJSON, Cause: err.Error(), Err: err}
	}
	return string(out), nil
}
