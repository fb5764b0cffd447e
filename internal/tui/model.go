package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// KBPort is the TUI-facing subset of the knowledge base.
type KBPort interface {
	FindBestAnswer(query string, threshold float64) (string, float64)
	AddPair(question, answer string) error
	QuestionCount() int
}

// entry is one question/answer exchange in the transcript.
type entry struct {
	question   string
	answer     string
	confidence float64
}

// Model is the Bubble Tea model for the chat TUI.
type Model struct {
	kb           KBPort
	threshold    float64
	maxAnswerLen int
	input        textinput.Model
	viewport     viewport.Model
	entries      []entry
	status       string
	ready        bool
}

// New creates a new chat model. Questions are answered with the configured
// threshold; "/learn question | answer" teaches a new pair.
func New(kb KBPort, threshold float64, maxAnswerLen int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /learn question | answer"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		kb:           kb,
		threshold:    threshold,
		maxAnswerLen: maxAnswerLen,
		input:        ti,
		viewport:     vp,
		status:       fmt.Sprintf("Knowledge base loaded with %d Q&A pairs.", kb.QuestionCount()),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := inputBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header + status + input frame + spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line != "" {
				m = m.submit(line)
				m.input.SetValue("")
				m.viewport.SetContent(m.renderTranscript())
				m.viewport.GotoBottom()
				return m, nil
			}
		case "up":
			m.viewport.LineUp(1)
			return m, nil
		case "down":
			m.viewport.LineDown(1)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) Model {
	switch {
	case strings.HasPrefix(line, "/learn "):
		question, answer, ok := strings.Cut(strings.TrimPrefix(line, "/learn "), "|")
		question = strings.TrimSpace(question)
		answer = strings.TrimSpace(answer)
		if !ok || question == "" || answer == "" {
			m.status = "Usage: /learn question | answer"
			return m
		}
		if err := m.kb.AddPair(question, answer); err != nil {
			m.status = "Learn failed: " + err.Error()
			return m
		}
		m.status = fmt.Sprintf("Learned. Knowledge base now holds %d Q&A pairs.", m.kb.QuestionCount())
	case line == "/stats":
		m.status = fmt.Sprintf("%d Q&A pairs loaded.", m.kb.QuestionCount())
	default:
		answer, confidence := m.kb.FindBestAnswer(line, m.threshold)
		m.entries = append(m.entries, entry{
			question:   line,
			answer:     truncate(answer, m.maxAnswerLen),
			confidence: confidence,
		})
		m.status = fmt.Sprintf("Answered with confidence %.2f", confidence)
	}
	return m
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("FAQ Bot")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return "No questions yet. Ask away."
	}
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + e.question))
		b.WriteString("\n")
		b.WriteString("Bot: " + e.answer)
		b.WriteString("\n")
		b.WriteString(confidenceStyle.Render(fmt.Sprintf("confidence %.2f", e.confidence)))
	}
	return b.String()
}

// truncate caps s at limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	confidenceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
