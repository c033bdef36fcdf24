package tui

import "github.com/charmbracelet/glamour"

const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// markdownRenderer renders PR descriptions. It is rebuilt when the width
// changes. The style is fixed because auto-detection queries the terminal.
type markdownRenderer struct {
	r     *glamour.TermRenderer
	width int
}

func (m *markdownRenderer) render(body string, width int) (string, error) {
	if m.r == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStylePath("dark"),
			glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", err
		}
		m.r = r
		m.width = width
	}
	return m.r.Render(body)
}
