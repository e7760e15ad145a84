package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/npc-engine/pkg/actor"
)

const PlaceHolderText = "Type a command, e.g. /list or /help"

const helpText = `Commands:
• /list - List every NPC
• /where <location> - List NPCs at a location
• /show <id> - Show one NPC
• /move <id> <location> - Move an NPC
• /damage <id> <amount> - Damage an NPC
• /delete <id> - Delete an NPC
• /copy <id> - Copy NPC JSON to the clipboard
• /help - Show this help
• Ctrl+C - Quit
`

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	api            *APIClient
	rosterViewport viewport.Model
	detailViewport viewport.Model
	textarea       textarea.Model
	ready          bool
	width          int
	height         int
	loading        bool

	rosterTitle string
	roster      []actor.NPC
	selected    *actor.NPC
	messages    []string

	showQuitModal bool
}

type rosterMsg struct {
	title string
	npcs  []actor.NPC
	err   error
}

type npcMsg struct {
	action string
	npc    *actor.NPC
	err    error
}

type deletedMsg struct {
	id  int64
	err error
}

type copiedMsg struct {
	id  int64
	err error
}

var (
	rosterPanelStyle = lipgloss.NewStyle().
				PaddingTop(2).
				PaddingBottom(1).
				PaddingLeft(3).
				PaddingRight(0)

	detailPanelStyle = lipgloss.NewStyle().
				PaddingTop(2).
				PaddingBottom(0).
				PaddingLeft(0).
				PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	friendlyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	hostileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	deadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")). // dark grey
			Strikethrough(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

var titleCaser = cases.Title(language.English)

func NewConsoleUI(api *APIClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	rosterVp := viewport.New(50, 20)
	rosterVp.MouseWheelEnabled = true

	detailVp := viewport.New(20, 20)

	return ConsoleUI{
		api:            api,
		textarea:       ta,
		rosterViewport: rosterVp,
		detailViewport: detailVp,
		rosterTitle:    "All NPCs",
		loading:        true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.listNPCs())
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		rvCmd tea.Cmd
		dvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.rosterViewport, rvCmd = m.rosterViewport.Update(msg)
		m.detailViewport, dvCmd = m.detailViewport.Update(msg)
		return m, tea.Batch(rvCmd, dvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		rosterWidth := int(float64(m.width)*0.6) - 4
		detailWidth := m.width - rosterWidth - 6

		m.rosterViewport.Width = rosterWidth - 2
		m.rosterViewport.Height = m.height - 7
		m.detailViewport.Width = detailWidth - 2
		m.detailViewport.Height = m.height - 4
		m.textarea.SetWidth(rosterWidth - 4)

		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			return m.handleCommand(input)
		}

	case rosterMsg:
		m.loading = false
		if msg.err != nil {
			m.addMessage(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.rosterTitle = msg.title
			m.roster = msg.npcs
		}
		m.refresh()
		return m, nil

	case npcMsg:
		m.loading = false
		if msg.err != nil {
			m.addMessage(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.selected = msg.npc
			m.replaceInRoster(msg.npc)
			if msg.action != "" {
				m.addMessage(infoStyle.Render(msg.action))
			}
		}
		m.refresh()
		return m, nil

	case deletedMsg:
		m.loading = false
		if msg.err != nil {
			m.addMessage(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.removeFromRoster(msg.id)
			if m.selected != nil && m.selected.ID == msg.id {
				m.selected = nil
			}
			m.addMessage(infoStyle.Render(fmt.Sprintf("NPC %d deleted", msg.id)))
		}
		m.refresh()
		return m, nil

	case copiedMsg:
		m.loading = false
		if msg.err != nil {
			m.addMessage(errorStyle.Render("Error: " + msg.err.Error()))
		} else {
			m.addMessage(infoStyle.Render(fmt.Sprintf("NPC %d copied to clipboard", msg.id)))
		}
		m.refresh()
		return m, nil
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.rosterViewport, rvCmd = m.rosterViewport.Update(msg)
	m.detailViewport, dvCmd = m.detailViewport.Update(msg)

	return m, tea.Batch(tiCmd, rvCmd, dvCmd)
}

// command is one parsed console line.
type command struct {
	name string
	id   int64
	arg  string
}

// parseCommand splits "/name [id] [rest...]". Commands that take an id
// require it; the remainder is kept verbatim so locations may hold spaces.
func parseCommand(input string) (command, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return command{}, fmt.Errorf("commands start with /, try /help")
	}
	cmd := command{name: strings.ToLower(fields[0])}
	args := fields[1:]

	switch cmd.name {
	case "/list", "/help":
		return cmd, nil
	case "/where":
		if len(args) == 0 {
			return cmd, fmt.Errorf("usage: /where <location>")
		}
		cmd.arg = strings.Join(args, " ")
		return cmd, nil
	case "/show", "/delete", "/copy", "/move", "/damage":
	default:
		return cmd, fmt.Errorf("unknown command %s, try /help", fields[0])
	}

	if len(args) == 0 {
		return cmd, fmt.Errorf("usage: %s <id>", cmd.name)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return cmd, fmt.Errorf("invalid NPC id %q", args[0])
	}
	cmd.id = id
	cmd.arg = strings.Join(args[1:], " ")

	switch cmd.name {
	case "/move":
		if cmd.arg == "" {
			return cmd, fmt.Errorf("usage: /move <id> <location>")
		}
	case "/damage":
		if _, err := strconv.Atoi(cmd.arg); err != nil {
			return cmd, fmt.Errorf("usage: /damage <id> <amount>")
		}
	}
	return cmd, nil
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd, err := parseCommand(input)
	if err != nil {
		m.addMessage(errorStyle.Render(err.Error()))
		m.refresh()
		return m, nil
	}

	if cmd.name == "/help" {
		m.addMessage(titleStyle.Render("Help:") + "\n" + helpText)
		m.refresh()
		return m, nil
	}

	m.loading = true
	m.refresh()

	switch cmd.name {
	case "/list":
		return m, m.listNPCs()
	case "/where":
		return m, m.listNPCsAt(cmd.arg)
	case "/show":
		return m, m.showNPC(cmd.id)
	case "/move":
		return m, m.moveNPC(cmd.id, cmd.arg)
	case "/damage":
		damage, _ := strconv.Atoi(cmd.arg)
		return m, m.damageNPC(cmd.id, damage)
	case "/delete":
		return m, m.deleteNPC(cmd.id)
	case "/copy":
		return m, m.copyNPC(cmd.id)
	}
	m.loading = false
	return m, nil
}

func (m ConsoleUI) listNPCs() tea.Cmd {
	return func() tea.Msg {
		npcs, err := m.api.ListNPCs()
		return rosterMsg{"All NPCs", npcs, err}
	}
}

func (m ConsoleUI) listNPCsAt(location string) tea.Cmd {
	return func() tea.Msg {
		npcs, err := m.api.ListNPCsAt(location)
		return rosterMsg{"NPCs at " + displayLocation(&location), npcs, err}
	}
}

func (m ConsoleUI) showNPC(id int64) tea.Cmd {
	return func() tea.Msg {
		npc, err := m.api.GetNPC(id)
		return npcMsg{"", npc, err}
	}
}

func (m ConsoleUI) moveNPC(id int64, location string) tea.Cmd {
	return func() tea.Msg {
		npc, err := m.api.MoveNPC(id, location)
		if err != nil {
			return npcMsg{err: err}
		}
		return npcMsg{fmt.Sprintf("%s moved to %s", npc.Name, displayLocation(npc.Location)), npc, nil}
	}
}

func (m ConsoleUI) damageNPC(id int64, damage int) tea.Cmd {
	return func() tea.Msg {
		npc, err := m.api.DamageNPC(id, damage)
		if err != nil {
			return npcMsg{err: err}
		}
		action := fmt.Sprintf("%s takes %d damage (%d HP left)", npc.Name, damage, npc.Health)
		if !npc.IsAlive() {
			action = fmt.Sprintf("%s takes %d damage and falls", npc.Name, damage)
		}
		return npcMsg{action, npc, nil}
	}
}

func (m ConsoleUI) deleteNPC(id int64) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{id, m.api.DeleteNPC(id)}
	}
}

func (m ConsoleUI) copyNPC(id int64) tea.Cmd {
	return func() tea.Msg {
		npc, err := m.api.GetNPC(id)
		if err != nil {
			return copiedMsg{id, err}
		}
		data, err := json.MarshalIndent(npc, "", "  ")
		if err != nil {
			return copiedMsg{id, fmt.Errorf("failed to encode NPC: %w", err)}
		}
		return copiedMsg{id, clipboard.WriteAll(string(data))}
	}
}

func (m *ConsoleUI) addMessage(msg string) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > 50 {
		m.messages = m.messages[len(m.messages)-50:]
	}
}

func (m *ConsoleUI) replaceInRoster(npc *actor.NPC) {
	for i := range m.roster {
		if m.roster[i].ID == npc.ID {
			m.roster[i] = *npc
			return
		}
	}
}

func (m *ConsoleUI) removeFromRoster(id int64) {
	for i := range m.roster {
		if m.roster[i].ID == id {
			m.roster = append(m.roster[:i], m.roster[i+1:]...)
			return
		}
	}
}

// refresh rebuilds both viewports for the current width.
func (m *ConsoleUI) refresh() {
	if !m.ready {
		return
	}
	width := m.rosterViewport.Width - 6

	var content strings.Builder
	content.WriteString(titleStyle.Render("NPC ENGINE") + "\n\n")
	content.WriteString(writeRoster(m.rosterTitle, m.roster))
	content.WriteString("\n" + separatorStyle.Render(strings.Repeat("─", max(width, 1))) + "\n\n")
	for _, msg := range m.messages {
		content.WriteString(wordwrap.String(msg, max(width, 10)) + "\n")
	}
	if m.loading {
		content.WriteString(loadingStyle.Render("Working...") + "\n")
	}
	m.rosterViewport.SetContent(content.String())
	m.rosterViewport.GotoBottom()

	m.detailViewport.SetContent(writeDetail(m.selected, m.detailViewport.Width))
}

func writeRoster(title string, npcs []actor.NPC) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render(title) + "\n")
	if len(npcs) == 0 {
		content.WriteString("No NPCs found.\n")
		return content.String()
	}
	for _, npc := range npcs {
		content.WriteString(rosterLine(npc) + "\n")
	}
	return content.String()
}

func rosterLine(npc actor.NPC) string {
	name := nameStyle.Render(npc.Name)
	if !npc.IsAlive() {
		name = deadStyle.Render(npc.Name)
	}
	disposition := friendlyStyle.Render("friendly")
	if npc.IsHostile {
		disposition = hostileStyle.Render("hostile")
	}
	return fmt.Sprintf("%4d  %s  %d HP  %s  @ %s", npc.ID, name, npc.Health, disposition, displayLocation(npc.Location))
}

func writeDetail(npc *actor.NPC, width int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("NPC") + "\n\n")
	if npc == nil {
		content.WriteString("Use /show <id> to inspect an NPC.\n")
		return content.String()
	}
	wrap := max(width, 10)

	content.WriteString(nameStyle.Render(npc.Name) + fmt.Sprintf(" (#%d)\n\n", npc.ID))
	if npc.Description != "" {
		content.WriteString(wordwrap.String(npc.Description, wrap) + "\n\n")
	}
	content.WriteString(fmt.Sprintf("Health: %d\n", npc.Health))
	content.WriteString(fmt.Sprintf("Strength: %d\n", npc.Strength))
	content.WriteString(fmt.Sprintf("Agility: %d\n", npc.Agility))
	content.WriteString(fmt.Sprintf("Intelligence: %d\n", npc.Intelligence))
	if npc.IsHostile {
		content.WriteString("Disposition: " + hostileStyle.Render("hostile") + "\n")
	} else {
		content.WriteString("Disposition: " + friendlyStyle.Render("friendly") + "\n")
	}
	content.WriteString("Location: " + displayLocation(npc.Location) + "\n\n")

	content.WriteString("Dialogue:\n")
	if len(npc.Dialogue) == 0 {
		content.WriteString("None\n")
	}
	for _, line := range npc.Dialogue {
		content.WriteString(wordwrap.String("• \""+line+"\"", wrap) + "\n")
	}
	return content.String()
}

// displayLocation title-cases a location tag for display.
func displayLocation(location *string) string {
	if location == nil {
		return "nowhere"
	}
	return titleCaser.String(*location)
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m, tea.Quit
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to quit the console?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	rosterWidth := int(float64(m.width)*0.6) - 4
	detailWidth := m.width - rosterWidth - 6

	rosterPanel := rosterPanelStyle.Width(rosterWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.rosterViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(rosterWidth-4, 1))),
			m.textarea.View(),
		),
	)

	detailPanel := detailPanelStyle.Width(detailWidth).Height(m.height - 2).Render(
		m.detailViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rosterPanel, detailPanel)
}
