// Package tui implements the interactive terminal dashboard.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"stockroom/internal/core"
)

// Mode is the input state of the dashboard.
type Mode int

const (
	ModeBrowse Mode = iota
	ModeSearch
	ModeConfirmDelete
)

// row is one variant line in the flattened grouped view.
type row struct {
	category string
	product  string
	total    int
	variant  core.VariantView
}

type status struct {
	style lipgloss.Style
	text  string
}

// mutationMsg carries the outcome of a service call made by a command.
type mutationMsg struct {
	text    string
	warning bool
	err     error
}

// Model is the bubbletea model of the dashboard.
type Model struct {
	svc     *core.Service
	ctx     context.Context
	keys    keyMap
	help    help.Model
	search  textinput.Model
	mode    Mode
	rows    []row
	cursor  int
	summary core.Summary
	status  status
	width   int
}

// New builds a dashboard over svc.
func New(ctx context.Context, svc *core.Service) Model {
	ti := textinput.New()
	ti.Placeholder = "search inventory"
	ti.Prompt = "/ "
	ti.CharLimit = 64

	m := Model{
		svc:    svc,
		ctx:    ctx,
		keys:   defaultKeyMap(),
		help:   help.New(),
		search: ti,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

func (m *Model) refresh() {
	m.rows = nil
	for _, category := range m.svc.GroupedInventory(m.search.Value()) {
		for _, product := range category.Products {
			for _, v := range product.Variants {
				m.rows = append(m.rows, row{category: category.Name, product: product.Name, total: product.TotalStock, variant: v})
			}
		}
	}
	m.summary = m.svc.Summary()
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
}

// Selected returns the item under the cursor.
func (m Model) Selected() (core.StockItem, bool) {
	if len(m.rows) == 0 {
		return core.StockItem{}, false
	}
	return m.rows[m.cursor].variant.StockItem, true
}

// Mode reports the current input mode.
func (m Model) Mode() Mode { return m.mode }

func (m Model) adjust(id int64, delta int) tea.Cmd {
	return func() tea.Msg {
		out, _, err := m.svc.AdjustStock(m.ctx, id, delta)
		if err != nil {
			return mutationMsg{err: err}
		}
		label := fmt.Sprintf("%s (%s)", out.Item.Name, out.Item.Size)
		if !out.Changed {
			return mutationMsg{text: label + " is already out of stock", warning: true}
		}
		return mutationMsg{text: fmt.Sprintf("%s stock is now %d", label, out.Item.Stock)}
	}
}

func (m Model) remove(id int64) tea.Cmd {
	return func() tea.Msg {
		item, _, err := m.svc.DeleteVariant(m.ctx, id)
		if err != nil {
			return mutationMsg{err: err}
		}
		return mutationMsg{text: fmt.Sprintf("deleted %s (%s)", item.Name, item.Size)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case mutationMsg:
		switch {
		case msg.err != nil:
			m.status = status{style: errorStyle, text: msg.err.Error()}
		case msg.warning:
			m.status = status{style: warningStyle, text: msg.text}
		default:
			m.status = status{style: successStyle, text: msg.text}
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeSearch:
			return m.updateSearch(msg)
		case ModeConfirmDelete:
			m.mode = ModeBrowse
			item, ok := m.Selected()
			if !ok || !key.Matches(msg, m.keys.Confirm) {
				m.status = status{style: mutedStyle, text: "delete cancelled"}
				return m, nil
			}
			return m, m.remove(item.ID)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Search):
		m.mode = ModeSearch
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Refresh):
		m.refresh()
	case key.Matches(msg, m.keys.Increment), key.Matches(msg, m.keys.Decrement), key.Matches(msg, m.keys.Delete):
		item, ok := m.Selected()
		if !ok {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Increment):
			return m, m.adjust(item.ID, 1)
		case key.Matches(msg, m.keys.Decrement):
			return m, m.adjust(item.ID, -1)
		}
		m.mode = ModeConfirmDelete
		m.status = status{style: warningStyle, text: fmt.Sprintf("delete %s (%s)? press y to confirm", item.Name, item.Size)}
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = ModeBrowse
		m.search.Blur()
		return m, nil
	case tea.KeyEsc:
		m.mode = ModeBrowse
		m.search.Blur()
		m.search.SetValue("")
		m.cursor = 0
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.cursor = 0
	m.refresh()
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Stockroom"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Units in stock: %d   Low stock: %s   Products: %d   Variants: %d\n\n",
		m.summary.TotalUnits, lowStockStyle.Render(fmt.Sprint(m.summary.LowStock)), m.summary.Products, m.summary.Variants))

	if m.mode == ModeSearch || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n\n")
	}

	if len(m.rows) == 0 {
		b.WriteString(mutedStyle.Render("No stock items."))
		b.WriteString("\n")
	}
	lastCategory, lastProduct := "", ""
	for i, r := range m.rows {
		if r.category != lastCategory {
			b.WriteString(categoryStyle.Render(r.category))
			b.WriteString("\n")
			lastCategory, lastProduct = r.category, ""
		}
		if r.product != lastProduct {
			b.WriteString(fmt.Sprintf("  %s %s\n", r.product, mutedStyle.Render(fmt.Sprintf("(total %d)", r.total))))
			lastProduct = r.product
		}
		stock := fmt.Sprint(r.variant.Stock)
		if r.variant.LowStock {
			stock = lowStockStyle.Render(stock)
		}
		line := fmt.Sprintf("%-8s %s", r.variant.Size, stock)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("  > " + line))
		} else {
			b.WriteString("    " + line)
		}
		b.WriteString("\n")
	}

	if m.status.text != "" {
		b.WriteString("\n")
		b.WriteString(m.status.style.Render(m.status.text))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Run starts the dashboard on the terminal and blocks until the user quits.
func Run(ctx context.Context, svc *core.Service) error {
	p := tea.NewProgram(New(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
