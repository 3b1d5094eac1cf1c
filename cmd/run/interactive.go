package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/jsvm/boundary"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	consoleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const chromeHeight = 5

type replModel struct {
	ctx     context.Context
	sess    *session
	console *bytes.Buffer
	title   string

	input   textinput.Model
	view    viewport.Model
	lines   []string
	history []string
	histIdx int
	busy    bool
}

type evalResultMsg struct {
	err     error
	result  string
	console string
}

func newReplModel(ctx context.Context, sess *session, console *bytes.Buffer, title string) *replModel {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("> ")
	ti.Placeholder = "1 + 1"
	ti.Width = 72
	ti.Focus()

	return &replModel{
		ctx:     ctx,
		sess:    sess,
		console: console,
		title:   title,
		input:   ti,
		view:    viewport.New(80, 20),
	}
}

func (m *replModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-chromeHeight, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit

		case tea.KeyEnter:
			src := strings.TrimSpace(m.input.Value())
			if src == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.history = append(m.history, src)
			m.histIdx = len(m.history)
			m.append(promptStyle.Render("> ") + src)
			m.input.Reset()
			return m, m.eval(src)

		case tea.KeyUp:
			if m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case tea.KeyDown:
			if m.histIdx < len(m.history)-1 {
				m.histIdx++
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			} else {
				m.histIdx = len(m.history)
				m.input.Reset()
			}
			return m, nil

		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}

	case evalResultMsg:
		m.busy = false
		if msg.console != "" {
			for _, line := range strings.Split(strings.TrimRight(msg.console, "\n"), "\n") {
				m.append(consoleStyle.Render(line))
			}
		}
		if msg.err != nil {
			m.append(errorStyle.Render(fmt.Sprintf("Error: %v", msg.err)))
		} else {
			m.append(resultStyle.Render(msg.result))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// eval runs off the update loop. busy keeps evaluations serial since the
// VM is not safe for concurrent use.
func (m *replModel) eval(src string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.sess.eval(m.ctx, src)
		console := m.console.String()
		m.console.Reset()
		return evalResultMsg{err: err, result: result, console: console}
	}
}

func (m *replModel) append(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *replModel) refresh() {
	m.view.SetContent(strings.Join(m.lines, "\n"))
	m.view.GotoBottom()
}

func (m *replModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("QuickJS REPL"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n\n")
	b.WriteString(m.view.View())
	b.WriteString("\n")
	if m.busy {
		b.WriteString(helpStyle.Render("evaluating..."))
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter eval • ↑/↓ history • pgup/pgdn scroll • ctrl+c quit"))

	return b.String()
}

func runInteractive(ctx context.Context, b boundary.Boundary, title string, log *zap.Logger) error {
	var console bytes.Buffer
	sess, err := newSession(ctx, b, &console, log)
	if err != nil {
		return err
	}
	defer sess.close()

	p := tea.NewProgram(newReplModel(ctx, sess, &console, title), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
