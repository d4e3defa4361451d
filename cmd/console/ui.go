package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jwebster45206/novel-engine/internal/session"
	"github.com/jwebster45206/novel-engine/internal/storage"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/save"
	"github.com/jwebster45206/novel-engine/pkg/state"
)

const (
	AppTitle     = "NOVEL ENGINE"
	refreshEvery = 200 * time.Millisecond
	barWidth     = 24
)

// startFunc builds a session for the named script.
type startFunc func(ctx context.Context, script string) (*session.Session, error)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
//
// Enemy turns and auto play fire on the session's own timers, so the model
// polls the session view on a tick instead of driving them.
type ConsoleUI struct {
	library *storage.Library
	start   startFunc
	session *session.Session
	view    session.View
	slots   []save.SlotInfo

	storyViewport viewport.Model
	metaViewport  viewport.Model
	bar           progress.Model
	ready         bool
	width         int
	height        int
	err           error
	status        string

	// Scenario selection state
	showScenarioModal bool
	scenarios         []string
	selectedScenario  int
	loadingScenarios  bool
	starting          bool

	// Quit confirmation state
	showQuitModal bool

	showTranscript bool
	// pendingSlot is 's' or 'l' while waiting for a slot digit.
	pendingSlot rune
}

type scenariosLoadedMsg struct {
	scenarios []string
	err       error
}

type sessionStartedMsg struct {
	session *session.Session
	err     error
}

type refreshTickMsg struct{}

var (
	storyPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

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

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

var logStyles = map[battle.LogKind]lipgloss.Style{
	battle.LogDamage: errorStyle,
	battle.LogHeal:   narratorStyle,
	battle.LogInfo:   modalItemStyle,
}

func NewConsoleUI(library *storage.Library, start startFunc) ConsoleUI {
	storyVp := viewport.New(50, 20)
	storyVp.MouseWheelEnabled = true

	metaVp := viewport.New(20, 20)

	return ConsoleUI{
		library:           library,
		start:             start,
		storyViewport:     storyVp,
		metaViewport:      metaVp,
		bar:               progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth), progress.WithoutPercentage()),
		showScenarioModal: true,
		loadingScenarios:  true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadScenarios()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showScenarioModal {
		return m.updateScenarioModal(msg)
	}

	var (
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.storyViewport, vpCmd = m.storyViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.render()

	case refreshTickMsg:
		m.view = m.session.View()
		m.render()
		return m, refreshTick()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.showQuitModal = true
			return m, nil
		}
		if m.handleKey(msg.String()) {
			m.view = m.session.View()
			m.render()
			return m, nil
		}
	}

	m.storyViewport, vpCmd = m.storyViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)
	return m, tea.Batch(vpCmd, mvCmd)
}

// handleKey applies one key press to the session. It reports whether the
// key was consumed; unconsumed keys scroll the viewports.
func (m *ConsoleUI) handleKey(key string) bool {
	ctx := context.Background()
	s := m.session
	m.status = ""

	if m.pendingSlot != 0 {
		mode := m.pendingSlot
		m.pendingSlot = 0
		slot, ok := slotFromKey(key)
		if !ok {
			m.status = "Cancelled"
			return true
		}
		if mode == 's' {
			m.report(s.Save(ctx, slot), fmt.Sprintf("Saved to slot %d", slot+1))
		} else {
			m.report(s.Load(ctx, slot), fmt.Sprintf("Loaded slot %d", slot+1))
		}
		m.slots = s.ListSaves(ctx)
		return true
	}

	switch key {
	case "s", "l":
		if !s.SavesAvailable() {
			m.status = "Saving is unavailable"
			return true
		}
		m.pendingSlot = rune(key[0])
		verb := "Save to"
		if key == "l" {
			verb = "Load from"
		}
		m.status = fmt.Sprintf("%s which slot? (1-%d)", verb, len(m.slots))
		return true
	case "r":
		m.report(s.LoadAutoSave(ctx), "Resumed from auto-save")
		return true
	case "a":
		if s.ToggleAuto() {
			m.status = "Auto play on"
		} else {
			m.status = "Auto play off"
		}
		return true
	case "c":
		if err := clipboard.WriteAll(s.TranscriptText()); err != nil {
			m.status = "Copy failed: " + err.Error()
		} else {
			m.status = "Transcript copied"
		}
		return true
	case "t":
		m.showTranscript = !m.showTranscript
		return true
	case "n":
		s.NewGame(ctx)
		m.status = "New game"
		return true
	}

	switch m.view.Screen {
	case state.ScreenNovel:
		switch key {
		case "enter", " ":
			if !s.Advance(ctx) {
				if len(m.view.Choices) > 0 {
					m.status = "Choose an option to continue"
				} else {
					m.status = "The End"
				}
			}
			return true
		}
		if i, ok := indexFromKey(key); ok && i < len(m.view.Choices) {
			m.report(s.SelectChoice(ctx, m.view.Choices[i].Target), "")
			return true
		}
	case state.ScreenBattle:
		b := m.view.Battle
		switch key {
		case "enter", " ", "b":
			if key != "b" && (b == nil || !b.Phase.Terminal()) {
				return false
			}
			m.report(s.LeaveBattle(ctx), "")
			return true
		}
		if i, ok := indexFromKey(key); ok && b != nil && i < len(b.Skills) {
			used, err := s.UseSkill(ctx, b.Skills[i].ID)
			if err == nil && !used {
				m.status = "You cannot use that now"
				return true
			}
			m.report(err, "")
			return true
		}
	case state.ScreenTitle:
		if key == "enter" {
			s.NewGame(ctx)
			m.status = "New game"
			return true
		}
	}
	return false
}

func (m *ConsoleUI) report(err error, success string) {
	switch {
	case err == nil:
		m.status = success
	case errors.Is(err, session.ErrBattleActive):
		m.status = "Not during a battle"
	case errors.Is(err, session.ErrNoSaveData):
		m.status = "That slot is empty"
	default:
		m.status = err.Error()
	}
}

// slotFromKey maps "1".."9" to slot 0..8.
func slotFromKey(key string) (int, bool) {
	return indexFromKey(key)
}

func indexFromKey(key string) (int, bool) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return 0, false
	}
	return int(key[0] - '1'), true
}

func (m *ConsoleUI) layout() {
	storyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - storyWidth - 6

	m.storyViewport.Width = storyWidth - 2
	m.storyViewport.Height = m.height - 6
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.ready = m.width > 0 && m.height > 0
}

func (m *ConsoleUI) render() {
	if m.session == nil {
		return
	}
	width := m.storyViewport.Width - 6
	if m.showTranscript {
		m.storyViewport.SetContent(titleStyle.Render("TRANSCRIPT") + "\n\n" + wordwrap.String(m.session.TranscriptText(), width))
		return
	}
	m.storyViewport.SetContent(renderStory(m.view, m.bar, width))
	if m.view.Screen == state.ScreenBattle {
		m.storyViewport.GotoBottom()
	}
	m.metaViewport.SetContent(writeMetadata(m.view, m.slots))
}

// formatSpeaker turns script speaker ids like "old_man" into "Old Man".
func formatSpeaker(speaker string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(speaker, "_", " "))
}

func ratio(cur, total int) float64 {
	if total <= 0 {
		return 0
	}
	return min(1, max(0, float64(cur)/float64(total)))
}

func renderStory(v session.View, bar progress.Model, width int) string {
	if width < 20 {
		width = 20
	}
	var content strings.Builder
	content.WriteString(titleStyle.Render(AppTitle) + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	switch v.Screen {
	case state.ScreenBattle:
		if v.Battle != nil {
			content.WriteString(renderBattle(*v.Battle, bar, width))
		}
	case state.ScreenTitle:
		content.WriteString(errorStyle.Render("Your journey ends here.") + "\n\n")
		content.WriteString(promptStyle.Render("Enter: new game   R: resume auto-save   L: load a slot"))
	default:
		if v.Beat == nil {
			break
		}
		if v.Beat.Speaker != "" {
			content.WriteString(speakerStyle.Render(formatSpeaker(v.Beat.Speaker)) + "\n")
		}
		content.WriteString(narratorStyle.Render(wordwrap.String(v.Beat.Text, width)) + "\n\n")
		for _, tip := range v.Beat.Tips {
			content.WriteString(promptStyle.Render("Tip: "+tip) + "\n")
		}
		for i, c := range v.Choices {
			line := fmt.Sprintf("%d) %s", i+1, c.Label)
			if c.Available {
				content.WriteString(choiceStyle.Render(line) + "\n")
			} else {
				content.WriteString(promptStyle.Render(line+" (locked)") + "\n")
			}
		}
		if len(v.Choices) == 0 {
			content.WriteString(promptStyle.Render("Enter: continue"))
		}
	}
	return content.String()
}

func renderBattle(b session.BattleView, bar progress.Model, width int) string {
	var content strings.Builder

	content.WriteString(speakerStyle.Render(b.Enemy.Name) + "\n")
	content.WriteString(fmt.Sprintf("HP %s %d/%d\n\n", bar.ViewAs(ratio(b.Enemy.HP, b.Enemy.MaxHP)), b.Enemy.HP, b.Enemy.MaxHP))

	content.WriteString(speakerStyle.Render(b.Player.Name) + "\n")
	content.WriteString(fmt.Sprintf("HP %s %d/%d\n", bar.ViewAs(ratio(b.Player.HP, b.Player.MaxHP)), b.Player.HP, b.Player.MaxHP))
	content.WriteString(fmt.Sprintf("MP %s %d/%d\n\n", bar.ViewAs(ratio(b.Player.MP, b.Player.MaxMP)), b.Player.MP, b.Player.MaxMP))

	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n")
	for _, entry := range b.Log {
		style, ok := logStyles[entry.Kind]
		if !ok {
			style = modalItemStyle
		}
		content.WriteString(style.Render(wordwrap.String(entry.Message, width)) + "\n")
	}
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	switch b.Phase {
	case battle.PlayerTurn:
		for i, sk := range b.Skills {
			line := fmt.Sprintf("%d) %s", i+1, sk.Name)
			if sk.MPCost > 0 {
				line += fmt.Sprintf(" (%d MP)", sk.MPCost)
			}
			if sk.Usable {
				content.WriteString(choiceStyle.Render(line) + "\n")
			} else {
				content.WriteString(promptStyle.Render(line) + "\n")
			}
		}
		content.WriteString(promptStyle.Render("B: flee"))
	case battle.EnemyTurn:
		content.WriteString(loadingStyle.Render(b.Enemy.Name + " is thinking..."))
	case battle.Victory:
		content.WriteString(titleStyle.Render("Victory!") + "\n")
		if b.Reward != nil && len(b.Reward.Items) > 0 {
			content.WriteString("Found: " + strings.Join(b.Reward.Items, ", ") + "\n")
		}
		content.WriteString(promptStyle.Render("Enter: continue"))
	case battle.Defeat:
		content.WriteString(errorStyle.Render("Defeat...") + "\n")
		content.WriteString(promptStyle.Render("Enter: continue"))
	}
	return content.String()
}

func writeMetadata(v session.View, slots []save.SlotInfo) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("GAME STATE") + "\n\n")

	content.WriteString("Session:\n")
	content.WriteString(v.SessionID[:8] + "...\n\n")

	content.WriteString("Progress:\n")
	content.WriteString(fmt.Sprintf("%d%% (%d/%d)\n\n", v.Progress, v.Index+1, v.Total))

	content.WriteString("Play time:\n")
	content.WriteString(save.FormatPlayTime(v.PlayTime) + "\n\n")

	if v.Auto {
		content.WriteString(loadingStyle.Render("AUTO") + "\n\n")
	}

	if len(v.Flags) > 0 {
		content.WriteString("Flags:\n")
		keys := make([]string, 0, len(v.Flags))
		for k := range v.Flags {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			content.WriteString(fmt.Sprintf("• %s: %v\n", k, v.Flags[k]))
		}
		content.WriteString("\n")
	}

	if len(v.Inventory) > 0 {
		content.WriteString("Inventory:\n")
		for _, item := range v.Inventory {
			content.WriteString(fmt.Sprintf("• %s x%d\n", item.ItemID, item.Count))
		}
		content.WriteString("\n")
	}

	content.WriteString("Saves:\n")
	for _, si := range slots {
		if si.IsEmpty || si.Data == nil {
			content.WriteString(fmt.Sprintf("%d: empty\n", si.Slot+1))
			continue
		}
		content.WriteString(fmt.Sprintf("%d: %s %s\n", si.Slot+1, si.Data.BeatID, save.FormatPlayTime(si.Data.PlayTimeSeconds)))
	}

	content.WriteString("\n")
	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Continue\n")
	content.WriteString("• 1-9: Choose\n")
	content.WriteString("• S/L: Save/Load\n")
	content.WriteString("• R: Resume auto-save\n")
	content.WriteString("• A: Auto play\n")
	content.WriteString("• T: Transcript\n")
	content.WriteString("• C: Copy transcript\n")
	content.WriteString("• N: New game\n")
	content.WriteString("• Ctrl+C: Quit\n")

	return content.String()
}

func (m ConsoleUI) loadScenarios() tea.Cmd {
	return func() tea.Msg {
		names, err := m.library.ListScripts(context.Background())
		if err == nil && len(names) == 0 {
			err = errors.New("no scripts found")
		}
		return scenariosLoadedMsg{names, err}
	}
}

func (m ConsoleUI) startSession(name string) tea.Cmd {
	return func() tea.Msg {
		s, err := m.start(context.Background(), name)
		return sessionStartedMsg{s, err}
	}
}

func (m ConsoleUI) updateScenarioModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case scenariosLoadedMsg:
		m.loadingScenarios = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.scenarios = msg.scenarios
		}

	case sessionStartedMsg:
		m.starting = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.showScenarioModal = false
		m.slots = m.session.ListSaves(context.Background())
		m.view = m.session.View()
		m.layout()
		m.render()
		return m, refreshTick()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.loadingScenarios {
				return m, tea.Quit
			}
			m.showQuitModal = true
			return m, nil
		}
		if m.loadingScenarios || m.starting || m.err != nil {
			return m, nil
		}

		switch msg.Type {
		case tea.KeyUp:
			if m.selectedScenario > 0 {
				m.selectedScenario--
			}
		case tea.KeyDown:
			if m.selectedScenario < len(m.scenarios)-1 {
				m.selectedScenario++
			}
		case tea.KeyEnter:
			if len(m.scenarios) > 0 {
				m.starting = true
				return m, m.startSession(m.scenarios[m.selectedScenario])
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case refreshTickMsg:
		// Keep the tick alive behind the modal.
		return m, refreshTick()

	case scenariosLoadedMsg, sessionStartedMsg:
		return m.updateScenarioModal(msg)

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
				return m, nil
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
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Unsaved progress since the last auto-save will be lost.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderScenarioModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingScenarios:
		content.WriteString(modalTitleStyle.Render("Loading Scenarios..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Reading the scenario library..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(fmt.Sprintf("Failed to start: %v", m.err)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.starting:
		content.WriteString(modalTitleStyle.Render("Starting..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting up your story..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Scenario"))
		content.WriteString("\n\n")

		for i, name := range m.scenarios {
			if i == m.selectedScenario {
				content.WriteString(modalSelectedItemStyle.Render(fmt.Sprintf("▶ %s", name)))
			} else {
				content.WriteString(modalItemStyle.Render(fmt.Sprintf("  %s", name)))
			}
			content.WriteString("\n")
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showScenarioModal {
		return m.renderScenarioModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	storyWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - storyWidth - 6

	status := m.status
	if status == "" {
		status = " "
	}

	storyPanel := storyPanelStyle.Width(storyWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.storyViewport.View(),
			separatorStyle.Render(strings.Repeat("─", storyWidth-4)),
			loadingStyle.Render(status),
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, storyPanel, metaPanel)
}

// refreshTick re-reads the session so timer-driven changes show up.
func refreshTick() tea.Cmd {
	return tea.Tick(refreshEvery, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}
