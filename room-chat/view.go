package main

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/gosuda/portal-chat/room-chat/session"
	"github.com/gosuda/portal-chat/room-chat/timeline"
)

// runMsg carries a transport handler onto the bubbletea loop.
type runMsg func()

type focus int

const (
	focusMessage focus = iota
	focusRoom
	focusName
)

// footer rows besides the suggestion dropdown: room, message, name, help.
const footerRows = 4

type model struct {
	ctrl *session.Controller

	width, height int
	viewport      viewport.Model
	roomInput     textinput.Model
	msgInput      textinput.Model
	nameInput     textinput.Model
	focus         focus
}

func newModel() *model {
	m := &model{viewport: viewport.New(0, 0)}

	m.roomInput = textinput.New()
	m.roomInput.Prompt = "room> "
	m.roomInput.Placeholder = "join or create a room"
	m.roomInput.CharLimit = 64

	m.msgInput = textinput.New()
	m.msgInput.Prompt = "say> "
	m.msgInput.CharLimit = 2000
	m.msgInput.Focus()

	m.nameInput = textinput.New()
	m.nameInput.Prompt = "name> "
	m.nameInput.CharLimit = 32
	return m
}

// bind attaches the controller; it must run before the program starts.
func (m *model) bind(c *session.Controller) {
	m.ctrl = c
	m.nameInput.SetValue(c.Username())
	m.syncPlaceholder()
}

// onChange is the controller's change callback. It runs on the bubbletea loop.
func (m *model) onChange(ch session.Change) {
	if m.ctrl == nil {
		return
	}
	if ch.Has(session.ChangeSuggestions) {
		m.layout()
	}
	if ch.Has(session.ChangeTimeline) || ch.Has(session.ChangeIdentity) {
		m.viewport.SetContent(m.renderTimeline())
	}
	if ch.Has(session.ChangeFollow) {
		m.viewport.GotoBottom()
	}
	if ch.Has(session.ChangeIdentity) && m.focus != focusName {
		m.nameInput.SetValue(m.ctrl.Username())
	}
	if ch.Has(session.ChangeConnection) || ch.Has(session.ChangeRoom) {
		m.syncPlaceholder()
	}
	m.reportScroll()
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runMsg:
		msg()
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.viewport.SetContent(m.renderTimeline())
		m.viewport.GotoBottom()
		m.reportScroll()
		return m, nil

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		return m, m.cycleFocus(1)
	case "shift+tab":
		return m, m.cycleFocus(-1)
	case "ctrl+r":
		m.ctrl.RefreshRooms()
		return m, nil
	case "pgup":
		m.viewport.ScrollUp(max(m.viewport.Height-1, 1))
		m.reportScroll()
		return m, nil
	case "pgdown":
		m.viewport.ScrollDown(max(m.viewport.Height-1, 1))
		m.reportScroll()
		return m, nil
	}

	switch m.focus {
	case focusRoom:
		return m, m.handleRoomKey(msg)
	case focusName:
		return m, m.handleNameKey(msg)
	default:
		return m, m.handleMessageKey(msg)
	}
}

func (m *model) handleRoomKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "down":
		m.ctrl.SuggestDown()
		return nil
	case "up":
		m.ctrl.SuggestUp()
		return nil
	case "esc":
		m.ctrl.DismissSuggestions()
		return nil
	case "enter":
		act := m.ctrl.SubmitRoom(m.roomInput.Value())
		if act.Room != "" {
			m.roomInput.Reset()
		}
		return nil
	}
	before := m.roomInput.Value()
	var cmd tea.Cmd
	m.roomInput, cmd = m.roomInput.Update(msg)
	if v := m.roomInput.Value(); v != before {
		m.ctrl.RoomInput(v)
	}
	return cmd
}

func (m *model) handleMessageKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "enter" {
		if m.ctrl.SendMessage(m.msgInput.Value()) {
			m.msgInput.Reset()
		}
		return nil
	}
	var cmd tea.Cmd
	m.msgInput, cmd = m.msgInput.Update(msg)
	return cmd
}

func (m *model) handleNameKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		if !m.ctrl.Rename(m.nameInput.Value()) {
			m.nameInput.SetValue(m.ctrl.Username())
			return nil
		}
		m.nameInput.SetValue(m.ctrl.Username())
		return m.setFocus(focusMessage)
	case "esc":
		m.nameInput.SetValue(m.ctrl.Username())
		return nil
	}
	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return cmd
}

func (m *model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(3)
		m.reportScroll()
		return nil
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(3)
		m.reportScroll()
		return nil
	}
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return nil
	}

	// Rows: header, sidebar title, rooms... ; footer starts after the viewport.
	if msg.X < sidebarWidth && msg.Y >= 2 && msg.Y < 1+m.viewport.Height {
		if rooms := m.ctrl.Rooms(); msg.Y-2 < len(rooms) {
			m.ctrl.JoinRoom(rooms[msg.Y-2])
		}
		return nil
	}
	footer := 1 + m.viewport.Height
	cands, _, _ := m.ctrl.Suggestions()
	if row := msg.Y - footer - 1; row >= 0 && row < min(len(cands), maxSuggestions) {
		if m.ctrl.SelectSuggestion(row) {
			m.roomInput.Reset()
		}
		return nil
	}
	if msg.Y != footer {
		m.ctrl.DismissSuggestions()
	}
	return nil
}

func (m *model) cycleFocus(step int) tea.Cmd {
	return m.setFocus(focus((int(m.focus) + step + 3) % 3))
}

func (m *model) setFocus(f focus) tea.Cmd {
	if m.focus == focusRoom && f != focusRoom {
		m.ctrl.DismissSuggestions()
	}
	m.focus = f
	m.roomInput.Blur()
	m.msgInput.Blur()
	m.nameInput.Blur()
	switch m.focus {
	case focusRoom:
		return m.roomInput.Focus()
	case focusName:
		return m.nameInput.Focus()
	default:
		return m.msgInput.Focus()
	}
}

// layout sizes the timeline to what the header, footer and dropdown leave.
func (m *model) layout() {
	cands, _, _ := m.ctrl.Suggestions()
	h := m.height - 1 - footerRows - min(len(cands), maxSuggestions)
	m.viewport.Width = max(m.width-sidebarWidth, 10)
	m.viewport.Height = max(h, 1)
	m.roomInput.Width = max(m.width-10, 10)
	m.msgInput.Width = max(m.width-10, 10)
}

func (m *model) reportScroll() {
	m.ctrl.ScrollChanged(
		float64(m.viewport.YOffset),
		float64(m.viewport.Height),
		float64(m.viewport.TotalLineCount()),
	)
}

func (m *model) syncPlaceholder() {
	switch m.ctrl.State() {
	case session.StateInRoom:
		m.msgInput.Placeholder = "type a message"
	case session.StateConnected:
		m.msgInput.Placeholder = "waiting for the server to join a room"
	default:
		m.msgInput.Placeholder = "disconnected, messages cannot be sent"
	}
}

func (m *model) renderTimeline() string {
	width := max(m.viewport.Width, 10)
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, msg := range m.ctrl.Messages() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(wrap.Render(m.renderMessage(msg)))
	}
	return b.String()
}

func (m *model) renderMessage(msg timeline.Message) string {
	text := ansi.Strip(msg.Text)
	if msg.System {
		return systemStyle.Render("* " + text)
	}
	author := authorStyle
	if m.ctrl.IsOwn(msg) {
		author = ownStyle
	}
	return author.Render(ansi.Strip(msg.Author)+":") + " " + text
}

func (m *model) View() string {
	if m.ctrl == nil || m.width == 0 {
		return "starting...\n"
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), m.viewport.View())

	var footer strings.Builder
	footer.WriteString(m.roomInput.View())
	cands, sel, hasSel := m.ctrl.Suggestions()
	for i, name := range cands {
		if i == maxSuggestions {
			break
		}
		footer.WriteByte('\n')
		if hasSel && i == sel {
			footer.WriteString(suggestSelected.Render("> " + ansi.Strip(name)))
		} else {
			footer.WriteString(suggestStyle.Render(ansi.Strip(name)))
		}
	}
	footer.WriteString("\n" + m.msgInput.View())
	footer.WriteString("\n" + m.nameInput.View())
	footer.WriteString("\n" + helpStyle.Render("tab focus  enter submit  up/down suggestions  esc dismiss  pgup/pgdn scroll  ctrl+r rooms  ctrl+c quit"))

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, footer.String())
}

func (m *model) renderHeader() string {
	var badge string
	switch m.ctrl.State() {
	case session.StateInRoom:
		badge = badgeInRoom.Render("online")
	case session.StateConnected:
		badge = badgeConnected.Render("connected")
	default:
		badge = badgeDisconnected.Render("offline")
	}
	label := m.ctrl.RoomLabel()
	if label == "" {
		label = "-"
	}
	return badge + headerStyle.Render("#"+ansi.Strip(label)+"  as "+m.ctrl.Username())
}

func (m *model) renderSidebar() string {
	current, inRoom := m.ctrl.CurrentRoom()
	lines := []string{sidebarTitle.Render("Rooms")}
	for _, name := range m.ctrl.Rooms() {
		label := ansi.Truncate(ansi.Strip(name), sidebarWidth-3, "~")
		if inRoom && name == current {
			lines = append(lines, sidebarRoomFocus.Render("> "+label))
		} else {
			lines = append(lines, sidebarRoom.Render("  "+label))
		}
	}
	return sidebarStyle.Height(m.viewport.Height).MaxHeight(m.viewport.Height).Render(strings.Join(lines, "\n"))
}
