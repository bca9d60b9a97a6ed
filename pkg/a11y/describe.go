package a11y

import (
	"html"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
	"github.com/microcosm-cc/bluemonday"
)

// Description is the text alternative attached to a static rendering.
// Rows, when present, are rendered as a two-column table.
type Description struct {
	Title string
	Text  string
	Rows  [][2]string
}

// Empty reports whether d carries no content.
func (d Description) Empty() bool {
	return d.Title == "" && d.Text == "" && len(d.Rows) == 0
}

// describer sanitizes and renders descriptions.
type describer struct {
	policy *bluemonday.Policy
}

func newDescriber() *describer {
	return &describer{policy: bluemonday.StrictPolicy()}
}

// clean strips escape sequences and markup from caller-supplied text. The
// sanitizer entity-encodes what it keeps; the result is plain text, so the
// entities are decoded again.
func (d *describer) clean(s string) string {
	s = ansi.Strip(s)
	s = html.UnescapeString(d.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}

// Render returns the plain-text form of desc.
func (d *describer) Render(desc Description) string {
	var parts []string
	if t := d.clean(desc.Title); t != "" {
		parts = append(parts, t)
	}
	if t := d.clean(desc.Text); t != "" {
		parts = append(parts, t)
	}
	if len(desc.Rows) > 0 {
		rows := make([][]string, 0, len(desc.Rows))
		for _, r := range desc.Rows {
			rows = append(rows, []string{d.clean(r[0]), d.clean(r[1])})
		}
		tbl := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Item", "Detail").
			Rows(rows...)
		parts = append(parts, tbl.String())
	}
	return strings.Join(parts, "\n")
}
