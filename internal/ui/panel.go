package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one line of a Panel.
type Param struct {
	Key   string
	Value string
}

// Panel is a bordered box with a title, an optional subtitle and key/value
// lines kept in insertion order.
type Panel struct {
	Title    string
	Subtitle string
	Params   []Param
	Err      error
	Width    int
}

// NewPanel creates a panel sized to the terminal.
func NewPanel(title, subtitle string) *Panel {
	return &Panel{Title: title, Subtitle: subtitle, Width: GetTerminalWidth()}
}

// Add appends a key/value line.
func (p *Panel) Add(key, value string) *Panel {
	p.Params = append(p.Params, Param{Key: key, Value: value})
	return p
}

// Addf appends a formatted key/value line.
func (p *Panel) Addf(key, format string, args ...any) *Panel {
	return p.Add(key, fmt.Sprintf(format, args...))
}

// Fail marks the panel as a failure report.
func (p *Panel) Fail(err error) *Panel {
	p.Err = err
	return p
}

// Render returns the styled panel.
func (p *Panel) Render() string {
	width := max(p.Width, MinTerminalWidth)

	border := PrimaryColor
	title := strings.ToUpper(p.Title)
	if p.Err != nil {
		border = ErrorColor
		title = FailureMarker + "  " + title
	}

	lines := []string{TitleStyle.Render(title)}
	if p.Subtitle != "" {
		lines = append(lines, SubtitleStyle.Render(p.Subtitle))
	}
	if len(p.Params) > 0 || p.Err != nil {
		lines = append(lines, lipgloss.NewStyle().
			Foreground(border).
			Render(strings.Repeat("─", max(width-6, 10))))
	}
	for _, param := range p.Params {
		lines = append(lines, ParamKeyStyle.Render(param.Key+":")+ParamValueStyle.Render(param.Value))
	}
	if p.Err != nil {
		lines = append(lines, ErrorMessageStyle.PaddingLeft(2).Render("Error: "+p.Err.Error()))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Width(width - 2).
		Render(strings.Join(lines, "\n"))
}

func (p *Panel) String() string {
	return p.Render()
}
