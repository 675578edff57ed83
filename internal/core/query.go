package core

import (
	"cmp"
	"io"
	"slices"
	"strings"

	"stockroom/internal/infra/persistence/csvfile"
)

// LowStockThreshold is the stock level below which a variant is flagged.
const LowStockThreshold = 5

// VariantView is one item as shown inside its product group.
type VariantView struct {
	StockItem
	LowStock bool `json:"low_stock"`
}

// ProductGroup collects the variants of one product within one category.
type ProductGroup struct {
	Name       string        `json:"name"`
	Category   string        `json:"category"`
	TotalStock int           `json:"total_stock"`
	Variants   []VariantView `json:"variants"`
}

// CategoryGroup collects the products filed under one category.
type CategoryGroup struct {
	Name     string         `json:"name"`
	Products []ProductGroup `json:"products"`
}

// Summary is the shop health overview.
type Summary struct {
	Variants   int `json:"variants"`
	Products   int `json:"products"`
	TotalUnits int `json:"total_units"`
	LowStock   int `json:"low_stock"`
}

// MatchesQuery reports whether any field contains query, ignoring case. An
// empty query matches everything.
func MatchesQuery(fields []string, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// FilterItems returns the items matching query in their original order.
func FilterItems(items []StockItem, query string) []StockItem {
	out := make([]StockItem, 0, len(items))
	for _, item := range items {
		if MatchesQuery(item.Fields(), query) {
			out = append(out, item)
		}
	}
	return out
}

// GroupItems partitions items by category then product, both in first-seen
// order, with each product's variants sorted by ascending id.
func GroupItems(items []StockItem) []CategoryGroup {
	var groups []CategoryGroup
	categoryIdx := make(map[string]int)
	productIdx := make(map[string]map[string]int)
	for _, item := range items {
		ci, ok := categoryIdx[item.Category]
		if !ok {
			ci = len(groups)
			categoryIdx[item.Category] = ci
			productIdx[item.Category] = make(map[string]int)
			groups = append(groups, CategoryGroup{Name: item.Category})
		}
		pi, ok := productIdx[item.Category][item.Name]
		if !ok {
			pi = len(groups[ci].Products)
			productIdx[item.Category][item.Name] = pi
			groups[ci].Products = append(groups[ci].Products, ProductGroup{Name: item.Name, Category: item.Category})
		}
		p := &groups[ci].Products[pi]
		p.Variants = append(p.Variants, VariantView{StockItem: item, LowStock: item.Stock < LowStockThreshold})
		p.TotalStock += item.Stock
	}
	for ci := range groups {
		for pi := range groups[ci].Products {
			slices.SortStableFunc(groups[ci].Products[pi].Variants, func(a, b VariantView) int {
				return cmp.Compare(a.ID, b.ID)
			})
		}
	}
	return groups
}

// SortHistory returns entries newest first. Entries sharing a timestamp keep
// their append order.
func SortHistory(entries []HistoryEntry) []HistoryEntry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b HistoryEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

// Summarize computes the shop health overview for items.
func Summarize(items []StockItem) Summary {
	s := Summary{Variants: len(items)}
	products := make(map[string]struct{})
	for _, item := range items {
		s.TotalUnits += item.Stock
		if item.Stock < LowStockThreshold {
			s.LowStock++
		}
		products[item.Name] = struct{}{}
	}
	s.Products = len(products)
	return s
}

// Inventory returns every item in insertion order.
func (s *Service) Inventory() []StockItem {
	return s.store.ListItems()
}

// Search returns the items whose field values contain query, ignoring case.
func (s *Service) Search(query string) []StockItem {
	return FilterItems(s.store.ListItems(), strings.TrimSpace(query))
}

// GroupedInventory returns the search-filtered items grouped for display.
func (s *Service) GroupedInventory(query string) []CategoryGroup {
	return GroupItems(s.Search(query))
}

// ProductNames returns the distinct product names in sorted order.
func (s *Service) ProductNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, item := range s.store.ListItems() {
		if _, ok := seen[item.Name]; ok {
			continue
		}
		seen[item.Name] = struct{}{}
		names = append(names, item.Name)
	}
	slices.Sort(names)
	return names
}

// Categories returns the category names in insertion order.
func (s *Service) Categories() []string {
	return s.store.ListCategories()
}

// History returns the history log newest first, filtered by query.
func (s *Service) History(query string) []HistoryEntry {
	query = strings.TrimSpace(query)
	sorted := SortHistory(s.store.ListHistory())
	out := make([]HistoryEntry, 0, len(sorted))
	for _, entry := range sorted {
		if MatchesQuery(entry.Fields(), query) {
			out = append(out, entry)
		}
	}
	return out
}

// Summary returns the shop health overview.
func (s *Service) Summary() Summary {
	return Summarize(s.store.ListItems())
}

// WriteHistoryCSV writes the history entries matching query in log order, using
// the history file's header, and returns the number of rows written.
func (s *Service) WriteHistoryCSV(w io.Writer, query string) (int, error) {
	query = strings.TrimSpace(query)
	var rows []HistoryEntry
	for _, entry := range s.store.ListHistory() {
		if MatchesQuery(entry.Fields(), query) {
			rows = append(rows, entry)
		}
	}
	if err := csvfile.WriteHistory(w, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
