package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docqa/internal/domain"
)

// QAPort is the TUI-facing subset of the Q&A API.
type QAPort interface {
	Query(ctx context.Context, query, sessionID string) (*domain.QueryResult, error)
	Rate(ctx context.Context, interactionID string, rating int) error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	port      QAPort
	sessionID string

	input    textinput.Model
	viewport viewport.Model

	transcript      []string
	lastInteraction string
	status          string
	waiting         bool
	ready           bool
}

// New creates a chat model bound to one session.
func New(port QAPort, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		port:      port,
		sessionID: sessionID,
		input:     ti,
		viewport:  vp,
		status:    "Connected. F2 rates the last answer up, F3 down.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

type answerMsg struct {
	query  string
	result *domain.QueryResult
	err    error
}

type ratedMsg struct {
	rating int
	err    error
}

func (m Model) askCmd(query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		result, err := m.port.Query(ctx, query, m.sessionID)
		return answerMsg{query: query, result: result, err: err}
	}
}

func (m Model) rateCmd(interactionID string, rating int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return ratedMsg{rating: rating, err: m.port.Rate(ctx, interactionID, rating)}
	}
}

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + 1 // header + spacer, input frame, status
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = maxInt(3, vh-th)
		m.viewport.SetContent(strings.Join(m.transcript, "\n"))
		return m, nil

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.lastInteraction = msg.result.InteractionID
		m.appendExchange(msg.query, msg.result)
		m.status = fmt.Sprintf("Confidence %.2f  (%.2fs)", msg.result.Confidence, msg.result.ProcessingTime)
		return m, nil

	case ratedMsg:
		if msg.err != nil {
			m.status = "Feedback error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Rated %d/5. Thanks.", msg.rating)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.waiting {
				m.input.SetValue("")
				m.waiting = true
				m.status = "Thinking..."
				return m, m.askCmd(q)
			}
		case "f2":
			if m.lastInteraction != "" {
				return m, m.rateCmd(m.lastInteraction, 5)
			}
		case "f3":
			if m.lastInteraction != "" {
				return m, m.rateCmd(m.lastInteraction, 1)
			}
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Q&A") +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("  session "+m.sessionID)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) appendExchange(query string, result *domain.QueryResult) {
	m.transcript = append(m.transcript, userStyle.Render("You: ")+query)
	m.transcript = append(m.transcript, "Assistant: "+result.Answer)
	if len(result.Sources) > 0 {
		refs := make([]string, len(result.Sources))
		for i, src := range result.Sources {
			refs[i] = fmt.Sprintf("doc %s p.%d", shortID(src.DocumentID), src.Page)
		}
		m.transcript = append(m.transcript, sourceStyle.Render("Sources: "+strings.Join(refs, ", ")))
	}
	m.transcript = append(m.transcript, "")
	m.viewport.SetContent(strings.Join(m.transcript, "\n"))
	m.viewport.GotoBottom()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
