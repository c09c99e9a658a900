// Package tui is the terminal front end: a bubbletea list over the task
// service with single-key reviews.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"memobot/internal/model"
	"memobot/internal/repository"
	"memobot/internal/srs"
)

// Service is what the screen needs from the task layer.
type Service interface {
	ListAll(ctx context.Context) ([]model.Task, error)
	ListDue(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, name, url string) (*model.Task, error)
	DeleteTask(ctx context.Context, id uint) error
	Review(ctx context.Context, id uint, rating srs.Rating) (*model.Task, error)
	Today() string
}

type viewMode int

const (
	viewDue viewMode = iota
	viewAll
)

type inputMode int

const (
	modeBrowse inputMode = iota
	modeAddName
	modeAddURL
	modeConfirmDelete
)

type keyMap struct {
	Toggle key.Binding
	Hard   key.Binding
	Good   key.Binding
	Reset  key.Binding
	Add    key.Binding
	Delete key.Binding
	Reload key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Toggle: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "due/all")),
	Hard:   key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "hard")),
	Good:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "good")),
	Reset:  key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "reset")),
	Add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Delete: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.Toggle, k.Hard, k.Good, k.Reset, k.Add, k.Delete, k.Reload, k.Quit}
}

// taskItem adapts model.Task to bubbles/list.Item.
type taskItem struct {
	task  model.Task
	today string
}

func (i taskItem) Title() string       { return i.task.Name }
func (i taskItem) Description() string { return i.task.URL }
func (i taskItem) FilterValue() string { return i.task.Name }

func (i taskItem) marker() string {
	switch {
	case i.task.DueDate < i.today:
		return errorStyle.Render("!")
	case i.task.DueDate == i.today:
		return pendingStyle.Render("•")
	default:
		return successStyle.Render("✔")
	}
}

type itemDelegate struct{}

func (d itemDelegate) Height() int                         { return 1 }
func (d itemDelegate) Spacing() int                        { return 0 }
func (d itemDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(taskItem)
	if !ok {
		return
	}
	line := fmt.Sprintf("%s %s %s %s",
		it.marker(),
		mutedStyle.Render(fmt.Sprintf("#%-4d", it.task.ID)),
		it.task.Name,
		mutedStyle.Render(fmt.Sprintf("L%d · %s", it.task.Level, it.task.DueDate)),
	)
	if it.task.URL != "" {
		line += " " + accentStyle.Render(it.task.URL)
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

// Model is the bubbletea model. Service calls run synchronously inside
// Update; the store is a local file.
type Model struct {
	ctx  context.Context
	svc  Service
	log  *slog.Logger
	list list.Model
	ti   textinput.Model

	view    viewMode
	mode    inputMode
	newName string
	status  string
	err     string
	width   int
	height  int
}

// New builds the screen and loads the due list.
func New(ctx context.Context, svc Service, log *slog.Logger) Model {
	if log == nil {
		log = slog.Default()
	}
	l := list.New(nil, itemDelegate{}, 80, 20)
	l.SetShowHelp(true)
	l.SetShowStatusBar(true)
	l.SetShowPagination(true)
	l.SetFilteringEnabled(false)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.SetStatusBarItemName("task", "tasks")
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.NextPage.SetKeys("right", "l", "pgdown")
	l.KeyMap.PrevPage.SetKeys("left", "h", "pgup")
	l.AdditionalShortHelpKeys = keys.bindings
	l.AdditionalFullHelpKeys = keys.bindings

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 500

	m := Model{
		ctx:    ctx,
		svc:    svc,
		log:    log.With(slog.String("component", "tui")),
		list:   l,
		ti:     ti,
		view:   viewDue,
		width:  80,
		height: 24,
	}
	m.reload()
	return m
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, svc Service, log *slog.Logger) error {
	p := tea.NewProgram(New(ctx, svc, log), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width, m.height = size.Width, size.Height
		m.resize()
		return m, nil
	}

	switch m.mode {
	case modeAddName, modeAddURL:
		return m.updateInput(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}

	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(k, keys.Quit):
			return m, tea.Quit
		case key.Matches(k, keys.Toggle):
			if m.view == viewDue {
				m.view = viewAll
			} else {
				m.view = viewDue
			}
			m.list.Select(0)
			m.reload()
			return m, nil
		case key.Matches(k, keys.Hard):
			m.review(srs.Hard)
			return m, nil
		case key.Matches(k, keys.Good):
			m.review(srs.Good)
			return m, nil
		case key.Matches(k, keys.Reset):
			m.review(srs.Reset)
			return m, nil
		case key.Matches(k, keys.Add):
			m.setMode(modeAddName)
			m.err = ""
			m.ti.SetValue("")
			m.ti.Placeholder = "Task name..."
			cmd := m.ti.Focus()
			return m, cmd
		case key.Matches(k, keys.Delete):
			if _, ok := m.selected(); ok {
				m.setMode(modeConfirmDelete)
				m.err = ""
			}
			return m, nil
		case key.Matches(k, keys.Reload):
			m.reload()
			m.status = "reloaded"
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if ok {
		switch k.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelInput()
			m.status = "add cancelled"
			return m, nil
		case tea.KeyEnter:
			value := strings.TrimSpace(m.ti.Value())
			if m.mode == modeAddName {
				if value == "" {
					m.err = "name cannot be empty"
					return m, nil
				}
				m.newName = value
				m.setMode(modeAddURL)
				m.err = ""
				m.ti.SetValue("")
				m.ti.Placeholder = "URL (optional, enter to skip)..."
				return m, nil
			}
			m.create(m.newName, value)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	m.setMode(modeBrowse)
	if k.String() != "y" && k.String() != "Y" {
		m.status = "delete cancelled"
		return m, nil
	}
	task, ok := m.selected()
	if !ok {
		return m, nil
	}
	if err := m.svc.DeleteTask(m.ctx, task.ID); err != nil {
		m.fail("delete", err)
		return m, nil
	}
	m.status = fmt.Sprintf("deleted #%d", task.ID)
	m.reload()
	return m, nil
}

func (m *Model) review(r srs.Rating) {
	task, ok := m.selected()
	if !ok {
		return
	}
	updated, err := m.svc.Review(m.ctx, task.ID, r)
	if err != nil {
		m.fail("review", err)
		m.reload()
		return
	}
	m.err = ""
	m.status = fmt.Sprintf("#%d %s: level %d, next %s", updated.ID, r, updated.Level, updated.DueDate)
	m.reload()
}

func (m *Model) create(name, url string) {
	m.cancelInput()
	task, err := m.svc.CreateTask(m.ctx, name, url)
	if err != nil {
		m.fail("add", err)
		return
	}
	m.err = ""
	m.status = fmt.Sprintf("added #%d", task.ID)
	m.reload()
}

func (m *Model) cancelInput() {
	m.setMode(modeBrowse)
	m.newName = ""
	m.ti.SetValue("")
	m.ti.Blur()
}

func (m *Model) fail(op string, err error) {
	m.log.Error(op+" failed", slog.String("error", err.Error()))
	if errors.Is(err, repository.ErrNotFound) {
		m.err = "task no longer exists"
		return
	}
	m.err = fmt.Sprintf("%s: %v", op, err)
}

func (m *Model) reload() {
	var (
		tasks []model.Task
		err   error
	)
	if m.view == viewDue {
		tasks, err = m.svc.ListDue(m.ctx)
	} else {
		tasks, err = m.svc.ListAll(m.ctx)
	}
	if err != nil {
		m.fail("load", err)
		return
	}

	today := m.svc.Today()
	items := make([]list.Item, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskItem{task: task, today: today})
	}
	idx := m.list.Index()
	m.list.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx < 0 {
		idx = 0
	}
	m.list.Select(idx)
	m.list.Title = m.title(today, len(items))
}

func (m Model) title(today string, n int) string {
	label := "Due"
	if m.view == viewAll {
		label = "All"
	}
	return fmt.Sprintf("%s   %s %d   %s",
		titleStyle.Render("memobot · "+label),
		accentStyle.Render("tasks"), n,
		mutedStyle.Render(today),
	)
}

func (m Model) selected() (model.Task, bool) {
	item, ok := m.list.SelectedItem().(taskItem)
	if !ok {
		return model.Task{}, false
	}
	return item.task, true
}

// setMode switches the input mode and refits the list around the prompt line.
func (m *Model) setMode(mode inputMode) {
	m.mode = mode
	m.resize()
}

func (m *Model) resize() {
	h := m.height - 4
	if m.mode != modeBrowse {
		h -= 2
	}
	if h < 1 {
		h = 1
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) View() string {
	content := m.list.View()

	switch m.mode {
	case modeAddName, modeAddURL:
		heading := "New task: name"
		if m.mode == modeAddURL {
			heading = fmt.Sprintf("New task %q: url", m.newName)
		}
		if m.err != "" {
			heading += "  " + errorStyle.Render(m.err)
		}
		content += "\n" + panelStyle.Render(heading+"\n"+m.ti.View())
	case modeConfirmDelete:
		if task, ok := m.selected(); ok {
			content += "\n" + errorStyle.Render(fmt.Sprintf("Delete #%d %s? (y/N)", task.ID, task.Name))
		}
	default:
		switch {
		case m.err != "":
			content += "\n" + errorStyle.Render("✖ "+m.err)
		case m.status != "":
			content += "\n" + successStyle.Render("✔ "+m.status)
		}
	}
	return panelStyle.Render(content)
}
