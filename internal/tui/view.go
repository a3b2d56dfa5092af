// Package tui renders pipeline results from the shared store. It is a
// pure reader: it subscribes to the result keys and re-reads them on
// every change notification, so it converges on whatever the pipeline
// last persisted regardless of when it was opened.
package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/forumhilfe/internal/store"
	"github.com/lotas/forumhilfe/internal/types"
)

// --- Messages ---

type storeChangedMsg []string

type subClosedMsg struct{}

// --- Model ---

type Model struct {
	store *store.Store
	sub   *store.Subscription

	current *types.PostRecord
	related map[string]*types.PostRecord
	reply   string
	lastURL string
	loadErr error
	width   int
	height  int
}

func NewModel(st *store.Store) Model {
	return Model{
		store: st,
		sub:   st.Subscribe(append([]string{store.KeyLastProcessedURL}, store.ResultKeys...)...),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.reload, m.listen())
}

func (m Model) listen() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		keys, ok := <-sub.C()
		if !ok {
			return subClosedMsg{}
		}
		return storeChangedMsg(keys)
	}
}

// reload re-reads every relevant key. Multi-key writes land in one
// transaction, but a view opened mid-run may still see only a subset —
// rendering degrades to "waiting" rather than failing.
func (m Model) reload() tea.Msg {
	var (
		current types.PostRecord
		related map[string]*types.PostRecord
		reply   string
		lastURL string
	)
	if _, err := m.store.GetJSON(store.KeyLastProcessedURL, &lastURL); err != nil {
		return loadedMsg{err: err}
	}
	okCur, err := m.store.GetJSON(store.KeyCurrentPostData, &current)
	if err != nil {
		return loadedMsg{err: err}
	}
	if _, err := m.store.GetJSON(store.KeyRelatedPostsData, &related); err != nil {
		return loadedMsg{err: err}
	}
	if _, err := m.store.GetJSON(store.KeyModResponse, &reply); err != nil {
		return loadedMsg{err: err}
	}

	msg := loadedMsg{related: related, reply: reply, lastURL: lastURL}
	if okCur {
		msg.current = &current
	}
	return msg
}

type loadedMsg struct {
	current *types.PostRecord
	related map[string]*types.PostRecord
	reply   string
	lastURL string
	err     error
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.sub.Close()
			return m, tea.Quit
		case "r":
			return m, m.reload
		}

	case storeChangedMsg:
		return m, tea.Batch(m.reload, m.listen())

	case subClosedMsg:
		return m, tea.Quit

	case loadedMsg:
		m.loadErr = msg.err
		if msg.err == nil {
			m.current = msg.current
			m.related = msg.related
			m.reply = msg.reply
			m.lastURL = msg.lastURL
		}
	}
	return m, nil
}

// --- View ---

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("160"))
	replyStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("forumhilfe"))
	if m.lastURL != "" {
		b.WriteString(dimStyle.Render("  " + m.lastURL))
	}
	b.WriteString("\n\n")

	switch {
	case m.loadErr != nil:
		b.WriteString(errorStyle.Render("store error: " + m.loadErr.Error()))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("press r to retry"))

	case m.current == nil:
		b.WriteString(dimStyle.Render("Waiting for a processed post..."))

	default:
		b.WriteString(sectionStyle.Render(fmt.Sprintf("%s — @%s, %d replies", m.current.Title, m.current.Author, m.current.ReplyCount)))
		b.WriteString("\n")
		b.WriteString(wrap(m.current.Summary, m.width))
		b.WriteString("\n\n")

		if len(m.related) > 0 {
			b.WriteString(sectionStyle.Render(fmt.Sprintf("Related (%d)", len(m.related))))
			b.WriteString("\n")
			for _, url := range sortedKeys(m.related) {
				rec := m.related[url]
				if rec == nil {
					b.WriteString(dimStyle.Render("  ✗ " + url))
				} else {
					line := "  • " + rec.Title
					if rec.Summary != "" {
						line += dimStyle.Render(" — " + firstLine(rec.Summary))
					}
					b.WriteString(line)
				}
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}

		if m.reply != "" {
			b.WriteString(sectionStyle.Render("Suggested reply"))
			b.WriteString("\n")
			b.WriteString(replyStyle.Render(wrap(m.reply, m.width-4)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("r refresh · q quit"))
	return b.String()
}

func sortedKeys(m map[string]*types.PostRecord) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func wrap(s string, width int) string {
	if width <= 10 {
		return s
	}
	var b strings.Builder
	line := 0
	for _, word := range strings.Fields(s) {
		if line > 0 && line+len(word)+1 > width {
			b.WriteByte('\n')
			line = 0
		} else if line > 0 {
			b.WriteByte(' ')
			line++
		}
		b.WriteString(word)
		line += len(word)
	}
	return b.String()
}
