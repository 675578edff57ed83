package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockroom/internal/core"
)

func newService(t *testing.T) *core.Service {
	t.Helper()
	now := time.Date(2024, 7, 15, 9, 30, 45, 0, time.UTC)
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(core.CategoryPolicyWarn),
		core.WithClock(core.ClockFunc(func() time.Time { return now })))
	ctx := context.Background()
	_, _, err := svc.CreateProduct(ctx, core.ProductInput{Category: "Helmets", Name: "Yellow Helmet", Sizes: "S, M", InitialStock: 10})
	require.NoError(t, err)
	_, _, err = svc.CreateProduct(ctx, core.ProductInput{Category: "Gloves", Name: "Rigger", Sizes: "L", InitialStock: 1})
	require.NoError(t, err)
	return svc
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model
}

// apply sends a key that triggers a service call and feeds the resulting
// message back the way the bubbletea runtime would.
func apply(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	out, ok := cmd().(mutationMsg)
	require.True(t, ok)
	return send(t, next.(Model), out)
}

func TestViewShowsGroupedInventory(t *testing.T) {
	m := New(context.Background(), newService(t))
	view := m.View()
	assert.Contains(t, view, "Helmets")
	assert.Contains(t, view, "Yellow Helmet")
	assert.Contains(t, view, "(total 20)")
	assert.Contains(t, view, "Rigger")
	assert.Contains(t, view, "Units in stock: 21")
	assert.Contains(t, view, "> S")

	item, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "Yellow Helmet", item.Name)
	assert.Equal(t, "S", item.Size)
}

func TestCursorMovementIsBounded(t *testing.T) {
	m := New(context.Background(), newService(t))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyUp})
	item, _ := m.Selected()
	assert.Equal(t, "S", item.Size)

	for range 5 {
		m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	}
	item, _ = m.Selected()
	assert.Equal(t, "Rigger", item.Name)

	m = send(t, m, runes("k"))
	item, _ = m.Selected()
	assert.Equal(t, "M", item.Size)
}

func TestAdjustStockFromKeys(t *testing.T) {
	svc := newService(t)
	m := New(context.Background(), svc)
	m = send(t, m, runes("j"))
	m = send(t, m, runes("j"))

	m = apply(t, m, runes("+"))
	item, _ := m.Selected()
	assert.Equal(t, 2, item.Stock)
	assert.Contains(t, m.View(), "Rigger (L) stock is now 2")

	m = apply(t, m, runes("-"))
	m = apply(t, m, runes("-"))
	m = apply(t, m, runes("-"))
	item, _ = m.Selected()
	assert.Equal(t, 0, item.Stock)
	assert.Contains(t, m.View(), "already out of stock")

	var outs int
	for _, entry := range svc.History("Stock Out") {
		if entry.ProductName == "Rigger" {
			outs++
		}
	}
	assert.Equal(t, 2, outs, "the floor no-op records nothing")
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	svc := newService(t)
	m := New(context.Background(), svc)

	m = send(t, m, runes("d"))
	assert.Equal(t, ModeConfirmDelete, m.Mode())
	m = send(t, m, runes("n"))
	assert.Equal(t, ModeBrowse, m.Mode())
	assert.Len(t, svc.Inventory(), 3)

	m = send(t, m, runes("d"))
	m = apply(t, m, runes("y"))
	assert.Len(t, svc.Inventory(), 2)
	assert.Contains(t, m.View(), "deleted Yellow Helmet (S)")
}

func TestSearchFiltersRows(t *testing.T) {
	m := New(context.Background(), newService(t))
	m = send(t, m, runes("/"))
	assert.Equal(t, ModeSearch, m.Mode())

	for _, r := range "rig" {
		m = send(t, m, runes(string(r)))
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, ModeBrowse, m.Mode())
	item, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "Rigger", item.Name)
	assert.NotContains(t, m.View(), "Yellow Helmet")

	m = send(t, m, runes("/"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Contains(t, m.View(), "Yellow Helmet")
}

func TestQuitAndEmptyInventory(t *testing.T) {
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(core.CategoryPolicyWarn))
	m := New(context.Background(), svc)
	assert.Contains(t, m.View(), "No stock items.")
	_, ok := m.Selected()
	assert.False(t, ok)

	next, cmd := m.Update(runes("+"))
	assert.Nil(t, cmd)
	_, cmd = next.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
