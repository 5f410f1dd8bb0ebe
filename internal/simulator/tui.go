package simulator

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/deckdrill/internal/images"
	"github.com/muurk/deckdrill/internal/ui"
)

// keyMap defines the simulator key bindings
type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Left  key.Binding
	Right key.Binding
	Press key.Binding
	Quit  key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Left, k.Right, k.Press, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Press, k.Quit},
	}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "right"),
		),
		Press: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter/space", "press"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

type updateMsg struct{}

type pressResultMsg struct {
	err error
}

// Model is the bubbletea model drawing the simulated device.
type Model struct {
	server *Server
	ctx    context.Context

	snapshot Snapshot
	column   int
	row      int
	lastErr  error

	keys keyMap
	help help.Model
}

// NewModel creates the TUI for a running simulator.
func NewModel(ctx context.Context, server *Server) Model {
	return Model{
		server:   server,
		ctx:      ctx,
		snapshot: server.Snapshot(),
		keys:     defaultKeyMap(),
		help:     help.New(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.server.Updates():
			return updateMsg{}
		case <-m.ctx.Done():
			return tea.Quit()
		}
	}
}

func (m Model) press() tea.Cmd {
	column, row := m.column, m.row
	return func() tea.Msg {
		return pressResultMsg{err: m.server.Press(column, row)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	size := m.snapshot.Device.Size
	switch msg := msg.(type) {
	case updateMsg:
		m.snapshot = m.server.Snapshot()
		return m, m.waitForUpdate()

	case pressResultMsg:
		m.lastErr = msg.err
		return m, nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			m.row = (m.row + size.Rows - 1) % size.Rows
		case key.Matches(msg, m.keys.Down):
			m.row = (m.row + 1) % size.Rows
		case key.Matches(msg, m.keys.Left):
			m.column = (m.column + size.Columns - 1) % size.Columns
		case key.Matches(msg, m.keys.Right):
			m.column = (m.column + 1) % size.Columns
		case key.Matches(msg, m.keys.Press):
			return m, m.press()
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	snap := m.snapshot
	status := "waiting for plugin"
	if snap.Registered {
		status = "plugin " + snap.PluginUUID
	}
	profile := snap.Profile
	if profile == "" {
		profile = "default"
	}

	b.WriteString(ui.TitleStyle.Render(fmt.Sprintf("%s (%s)", snap.Device.Name, snap.Device.Type)))
	b.WriteString("\n")
	b.WriteString(ui.SubtitleStyle.Render(fmt.Sprintf("port %d · %s · profile %s", m.server.Port(), status, profile)))
	b.WriteString("\n\n")
	b.WriteString(RenderGrid(snap, m.column, m.row))
	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(ui.ErrorMessageStyle.PaddingLeft(2).Render(m.lastErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString(ui.HelpStyle.Render(m.help.View(m.keys)))
	b.WriteString("\n")
	return b.String()
}

// RenderGrid draws the keys of a snapshot. A cursor outside the grid draws no
// selection.
func RenderGrid(snap Snapshot, column, row int) string {
	cols := snap.Device.Size.Columns
	if cols == 0 {
		return ""
	}
	var rows []string
	for r := 0; r*cols < len(snap.Keys); r++ {
		var boxes []string
		for c := 0; c < cols; c++ {
			k := snap.Keys[r*cols+c]
			boxes = append(boxes, renderKey(k, c == column && r == row))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderKey(k Key, selected bool) string {
	label, border := keyLabel(k)
	width := ui.KeyWidth - 4
	if len([]rune(label)) > width {
		label = string([]rune(label)[:width-1]) + "…"
	}
	return ui.KeyStyle(selected, border).Render(label)
}

func keyLabel(k Key) (string, lipgloss.Color) {
	if k.Action == "" {
		return "", ui.MutedColor
	}

	border := ui.MutedColor
	switch k.Flash {
	case "alert":
		border = ui.ErrorColor
	case "ok":
		border = ui.SuccessColor
	}

	switch name := images.Name(k.Image); name {
	case "close":
		return "✕", border
	case "previous":
		return "◀", withDefault(border, ui.WarningColor)
	case "next":
		return "▶", withDefault(border, ui.WarningColor)
	case "":
		if k.Title != "" {
			return k.Title, withDefault(border, ui.TextColor)
		}
		return "·", border
	default:
		if k.Title != "" {
			return k.Title, withDefault(border, ui.TextColor)
		}
		return "[" + name + "]", border
	}
}

func withDefault(current, fallback lipgloss.Color) lipgloss.Color {
	if current == ui.MutedColor {
		return fallback
	}
	return current
}

// RunTUI runs the interactive view until the user quits or ctx ends.
func RunTUI(ctx context.Context, server *Server) error {
	p := tea.NewProgram(NewModel(ctx, server), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
