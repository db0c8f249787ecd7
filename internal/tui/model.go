package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/dland/internal/config"
	"github.com/diogo/dland/internal/history"
	"github.com/diogo/dland/internal/logging"
	"github.com/diogo/dland/internal/models"
	"github.com/diogo/dland/internal/render"
	"github.com/diogo/dland/internal/session"
)

// Message types for the TUI
type (
	// eventMsg carries an orchestrator event into the program
	eventMsg session.Event
	// turnDoneMsg is sent when SendTurn returns
	turnDoneMsg struct {
		result *session.TurnResult
		err    error
	}
	// personasMsg is sent when the personas file was reloaded
	personasMsg struct {
		personas []config.Persona
	}
)

// Session is the part of the orchestrator the TUI drives
type Session interface {
	SendTurn(ctx context.Context, text string, attachment *models.Attachment) (*session.TurnResult, error)
	Subscribe(obs session.Observer)
	Messages() []models.Message
	ActivePersona() config.Persona
	Personas() []config.Persona
	SwitchPersona(name string) error
	SetPersonas(personas []config.Persona)
	ResetConversation() error
	Settings() models.Settings
	UpdateSettings(settings models.Settings) error
	ExportLog() ([]byte, error)
	ExportMarkdown() string
	ExportFilename(format history.ExportFormat) string
	ImportLog(data []byte) error
}

// Options configures the chat screen
type Options struct {
	Markdown config.MarkdownConfig
	Logger   *slog.Logger
	// WatchPersonas reloads personas when the personas file changes
	WatchPersonas bool
	Now           func() time.Time
}

// writeClipboard is replaced in tests
var writeClipboard = clipboard.WriteAll

// Model represents the TUI state
type Model struct {
	sess   Session
	ctx    context.Context
	opts   Options
	logger *slog.Logger

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// State
	messages       []models.Message
	persona        config.Persona
	settings       models.Settings
	loading        bool
	cancel         context.CancelFunc
	attachment     *models.Attachment
	attachmentName string
	ready          bool
	err            error
	notice         string

	selecting bool
	selector  personaSelector

	// Dimensions
	width  int
	height int
}

// NewChatModel creates the chat screen for sess. Turns run under ctx.
func NewChatModel(ctx context.Context, sess Session, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask Dland anything... (/help for commands)"
	ta.CharLimit = 8000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.Focus()

	settings := sess.Settings()
	ApplyPalette(render.PaletteFor(settings.Theme, settings.AccentColor))
	styleTextarea(&ta)

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = styles.loading

	return Model{
		sess:     sess,
		ctx:      ctx,
		opts:     opts,
		logger:   opts.Logger.With("component", "tui"),
		textarea: ta,
		spinner:  s,
		messages: sess.Messages(),
		persona:  sess.ActivePersona(),
		settings: settings,
	}
}

func styleTextarea(ta *textarea.Model) {
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(styles.palette.Text)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(styles.palette.TextDim)
	ta.BlurredStyle = ta.FocusedStyle
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.updateViewport()
		return m, nil

	case tea.KeyMsg:
		if m.selecting {
			return m.updateSelector(msg)
		}

		switch msg.String() {
		case "ctrl+c":
			m.cancelTurn()
			return m, tea.Quit

		case "esc":
			if m.loading {
				m.cancelTurn()
				return m, nil
			}
			return m, tea.Quit

		case "enter":
			if m.loading {
				return m, nil
			}
			return m.submit(m.textarea.Value())

		case "alt+1", "alt+2", "alt+3", "alt+4":
			if !m.loading && len(m.messages) == 0 {
				idx := int(msg.Runes[0] - '1')
				if idx < len(m.persona.Suggestions) {
					return m.submit(m.persona.Suggestions[idx])
				}
			}
		}

	case eventMsg:
		m.applyEvent(session.Event(msg))
		return m, nil

	case turnDoneMsg:
		m.loading = false
		m.cancel = nil
		switch {
		case msg.err != nil:
			m.err = msg.err
		case msg.result.Failed():
			m.err = msg.result.Err
		}
		m.messages = m.sess.Messages()
		m.refresh(true)
		return m, nil

	case personasMsg:
		m.sess.SetPersonas(msg.personas)
		m.persona = m.sess.ActivePersona()
		m.notice = "Personas reloaded"
		m.updateViewport()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		m.updateViewport()
		return m, cmd
	}

	// Only pass KeyMsg to textarea to prevent escape sequence leaks
	if !m.loading {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) layout() {
	headerHeight := 4
	inputHeight := 6
	statusHeight := 2
	padding := 2

	vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
	if vpHeight < 5 {
		vpHeight = 5
	}
	contentWidth := m.width - 4

	if !m.ready {
		m.viewport = viewport.New(contentWidth, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(contentWidth - 4)
}

// submit handles an input line: a slash command or a new turn
func (m Model) submit(input string) (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(input)
	m.err = nil
	m.notice = ""

	if c, ok := parseCommand(text); ok {
		m.textarea.Reset()
		return m.runCommand(c)
	}
	if text == "" && m.attachment == nil {
		return m, nil
	}

	att := m.attachment
	m.attachment = nil
	m.attachmentName = ""
	m.textarea.Reset()
	m.loading = true

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	sess := m.sess

	return m, tea.Batch(
		func() tea.Msg {
			defer cancel()
			res, err := sess.SendTurn(ctx, text, att)
			return turnDoneMsg{result: res, err: err}
		},
		m.spinner.Tick,
	)
}

func (m *Model) cancelTurn() {
	if m.cancel != nil {
		m.cancel()
	}
}

// applyEvent keeps the visible log in step with the orchestrator. The view
// follows new user messages; replies only scroll it when it was already at
// the bottom.
func (m *Model) applyEvent(ev session.Event) {
	follow := m.viewport.AtBottom()
	m.messages = ev.Messages

	switch ev.Kind {
	case session.EventAppended:
		if ev.Message.Role == models.RoleUser {
			follow = true
		}
	case session.EventReset:
		m.persona = m.sess.ActivePersona()
		follow = true
	}
	m.refresh(follow)
}

func (m *Model) refresh(follow bool) {
	m.updateViewport()
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) updateSelector(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	chosen, done := m.selector.update(msg)
	if !done {
		return m, nil
	}
	m.selecting = false
	if chosen != "" && chosen != m.persona.Name {
		m.switchPersona(chosen)
	}
	return m, nil
}

func (m *Model) switchPersona(name string) {
	if err := m.sess.SwitchPersona(name); err != nil {
		m.err = err
		return
	}
	m.persona = m.sess.ActivePersona()
	m.messages = m.sess.Messages()
	m.notice = "Switched to " + m.persona.Name
	m.refresh(true)
}

// runCommand executes a slash command
func (m Model) runCommand(c slashCommand) (tea.Model, tea.Cmd) {
	switch c.name {
	case "exit":
		m.cancelTurn()
		return m, tea.Quit

	case "help":
		m.notice = helpText()

	case "persona", "personas":
		if c.arg == "" {
			m.selecting = true
			m.selector = newPersonaSelector(m.sess.Personas(), m.persona.Name)
			return m, nil
		}
		m.switchPersona(c.arg)

	case "reset", "clear":
		if err := m.sess.ResetConversation(); err != nil {
			m.err = err
			break
		}
		m.messages = m.sess.Messages()
		m.notice = "Conversation cleared"
		m.refresh(true)

	case "export":
		path, err := m.export(c.arg)
		if err != nil {
			m.err = err
			break
		}
		m.notice = "Exported to " + path

	case "import":
		if err := m.importFile(c.arg); err != nil {
			m.err = err
			break
		}
		m.messages = m.sess.Messages()
		m.notice = fmt.Sprintf("Imported %d messages", len(m.messages))
		m.refresh(true)

	case "attach":
		if c.arg == "" {
			m.err = fmt.Errorf("usage: /attach <path>")
			break
		}
		att, err := models.NewAttachmentFromFile(c.arg)
		if err != nil {
			m.err = err
			break
		}
		m.attachment = att
		m.attachmentName = filepath.Base(c.arg)
		m.notice = "Attached " + m.attachmentName

	case "detach":
		m.attachment = nil
		m.attachmentName = ""

	case "copy":
		text := lastReply(m.messages)
		if text == "" {
			m.err = fmt.Errorf("nothing to copy yet")
			break
		}
		if err := writeClipboard(text); err != nil {
			m.err = fmt.Errorf("failed to copy: %w", err)
			break
		}
		m.notice = "Copied last reply"

	case "tone", "theme", "accent", "name":
		m.updateSetting(c.name, c.arg)

	default:
		m.err = fmt.Errorf("unknown command /%s (try /help)", c.name)
	}
	return m, nil
}

func (m *Model) updateSetting(key, value string) {
	s := m.sess.Settings()
	if err := s.Set(key, value); err != nil {
		m.err = err
		return
	}
	if err := m.sess.UpdateSettings(s); err != nil {
		m.err = err
		return
	}
	m.settings = s

	if key == "theme" || key == "accent" {
		ApplyPalette(render.PaletteFor(s.Theme, s.AccentColor))
		styleTextarea(&m.textarea)
		m.spinner.Style = styles.loading
		m.updateViewport()
	}
	m.notice = fmt.Sprintf("%s set to %q", key, value)
}

func (m Model) export(path string) (string, error) {
	format := history.ExportFormatJSON
	if strings.HasSuffix(strings.ToLower(path), ".md") {
		format = history.ExportFormatMarkdown
	}
	if path == "" {
		path = m.sess.ExportFilename(format)
	}

	var data []byte
	if format == history.ExportFormatMarkdown {
		data = []byte(m.sess.ExportMarkdown())
	} else {
		var err error
		if data, err = m.sess.ExportLog(); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

func (m Model) importFile(path string) error {
	if path == "" {
		return fmt.Errorf("usage: /import <path>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read import: %w", err)
	}
	return m.sess.ImportLog(data)
}

// lastReply returns the text of the newest Model message
func lastReply(msgs []models.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleModel && msgs[i].Text != "" {
			return msgs[i].Text
		}
	}
	return ""
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return styles.loading.Render("  Initializing...")
	}
	contentWidth := m.width - 4

	if m.selecting {
		return m.selector.view(m.width - 8)
	}

	var sections []string

	headerParts := []string{
		styles.logo.Render("◆ dland"),
		"  ",
		styles.title.Render(m.persona.Name),
	}
	if m.persona.Description != "" {
		headerParts = append(headerParts, styles.hint.Render("  •  "), styles.subtitle.Render(m.persona.Description))
	}
	header := styles.header.Width(contentWidth).Render(lipgloss.JoinHorizontal(lipgloss.Center, headerParts...))
	sections = append(sections, header)

	var messagesContent string
	if len(m.messages) == 0 {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, styles.messages.Width(contentWidth).Height(m.viewport.Height).Render(messagesContent))

	label := "You"
	if m.settings.UserName != "" {
		label = m.settings.UserName
	}
	if m.attachmentName != "" {
		label += styles.attachment.Render("  [image: " + m.attachmentName + "]")
	}
	var inputContent string
	if m.loading {
		inputContent = m.spinner.View() + styles.loading.Render(" Dland is thinking") + styles.hint.Render("  (esc to cancel)")
	} else {
		inputContent = lipgloss.JoinVertical(lipgloss.Left, styles.inputLabel.Render(label), m.textarea.View())
	}
	sections = append(sections, styles.inputPanel.Width(contentWidth).Render(inputContent))

	sections = append(sections, m.renderStatusBar(contentWidth))

	switch {
	case m.err != nil:
		sections = append(sections, FormatError(m.err))
	case m.notice != "":
		sections = append(sections, styles.notice.Render(m.notice))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderWelcome shows the greeting and the persona's suggestions
func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4

	lines := []string{
		styles.welcomeTitle.Width(width).Render(greeting(m.opts.Now(), m.settings.UserName)),
		"",
		styles.welcomeSubtitle.Width(width).Render(m.persona.Subtitle),
		"",
	}
	for i, s := range m.persona.Suggestions {
		if i >= config.MaxSuggestions {
			break
		}
		lines = append(lines, styles.suggestionKey.Render(fmt.Sprintf("alt+%d", i+1))+" "+styles.suggestion.Render(s))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, lines...)

	topPadding := (m.viewport.Height - lipgloss.Height(content)) / 2
	if topPadding < 0 {
		topPadding = 0
	}
	return strings.Repeat("\n", topPadding) + content
}

func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Esc", "Cancel/Quit"},
		{"↑↓", "Scroll"},
		{"/help", "Commands"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, styles.statusKey.Render(s.key)+styles.statusDesc.Render(" "+s.desc))
	}
	return styles.statusBar.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}

// updateViewport refreshes the viewport content with styled messages
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}
	bubbleWidth := m.viewport.Width - 6
	opts := render.OptionsFromConfig(m.opts.Markdown, m.settings.Theme, bubbleWidth-4)

	userLabel := "You"
	if m.settings.UserName != "" {
		userLabel = m.settings.UserName
	}

	var content strings.Builder
	for i, msg := range m.messages {
		if i > 0 {
			content.WriteString("\n")
		}

		switch msg.Role {
		case models.RoleUser:
			body := msg.Text
			if msg.Attachment != nil {
				note := styles.attachment.Render("[" + msg.Attachment.MIMEType + " attached]")
				if body == "" {
					body = note
				} else {
					body += "\n" + note
				}
			}
			content.WriteString(styles.userLabel.Render(userLabel) + "\n" + styles.userBubble.Width(bubbleWidth).Render(body))

		case models.RoleModel:
			var body string
			if msg.IsStreaming && msg.Text == "" {
				body = m.spinner.View() + styles.loading.Render(" thinking")
			} else {
				body = render.Reply(msg.Text, opts)
			}
			content.WriteString(styles.replyLabel.Render("Dland") + "\n" + styles.replyBubble.Width(bubbleWidth).Render(body))
			if !msg.IsStreaming && msg.ExecutionTime > 0 {
				content.WriteString("\n" + styles.elapsed.Render(fmt.Sprintf("Generated in %.1fs", msg.Duration().Seconds())))
			}

		default:
			content.WriteString(styles.failure.Width(bubbleWidth).Render(msg.Text))
		}
		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
}

// RunChat starts the chat TUI. Quitting cancels an in-flight turn.
func RunChat(ctx context.Context, sess Session, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewChatModel(ctx, sess, opts)
	p := tea.NewProgram(m, tea.WithAltScreen())

	sess.Subscribe(func(ev session.Event) {
		p.Send(eventMsg(ev))
	})

	if opts.WatchPersonas {
		go func() {
			err := config.WatchPersonas(ctx,
				func(pc *config.PersonaConfig) {
					for _, problem := range pc.Skipped {
						m.logger.Warn("ignoring invalid persona", "error", problem)
					}
					p.Send(personasMsg{personas: pc.Personas})
				},
				func(err error) { m.logger.Warn("personas reload failed", "error", err) },
			)
			if err != nil {
				m.logger.Warn("personas watcher stopped", "error", err)
			}
		}()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
