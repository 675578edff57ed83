package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"stockroom/internal/core"
)

var (
	colorSuccess = lipgloss.Color("#10B981")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#6B7280")
	colorPrimary = lipgloss.Color("#7C3AED")
	colorBorder  = lipgloss.Color("#4B5563")

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	primaryStyle = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true)
	lowStyle     = lipgloss.NewStyle().Foreground(colorError)
	headerStyle  = lipgloss.NewStyle().Foreground(colorPrimary).Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, successStyle.Render("✓ ")+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, warningStyle.Render("⚠ ")+fmt.Sprintf(format, args...))
}

func printSection(w io.Writer, title string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, primaryStyle.Render(title))
}

// printWarnings reports the non-blocking rule violations of a committed operation.
func printWarnings(w io.Writer, res core.Result) {
	for _, warning := range res.Warnings() {
		printWarning(w, "%s", warning)
	}
}

func renderSummary(w io.Writer, s core.Summary) {
	printSection(w, "Shop Health")
	fmt.Fprintf(w, "  Units in stock: %d   Low stock: %s   Products: %d   Variants: %d\n",
		s.TotalUnits, lowCount(s.LowStock), s.Products, s.Variants)
}

func lowCount(n int) string {
	if n == 0 {
		return strconv.Itoa(n)
	}
	return lowStyle.Render(strconv.Itoa(n))
}

func renderGroups(w io.Writer, groups []core.CategoryGroup) {
	if len(groups) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No stock items."))
		return
	}
	for _, category := range groups {
		printSection(w, category.Name)
		for _, product := range category.Products {
			fmt.Fprintf(w, "%s %s\n", product.Name, mutedStyle.Render(fmt.Sprintf("(total %d)", product.TotalStock)))
			rows := make([][]string, 0, len(product.Variants))
			for _, v := range product.Variants {
				rows = append(rows, []string{strconv.FormatInt(v.ID, 10), v.Size, strconv.Itoa(v.Stock), v.LastUpdated})
			}
			variants := product.Variants
			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
				Headers("ID", "SIZE", "STOCK", "UPDATED").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle
					}
					if col == 2 && row >= 0 && row < len(variants) && variants[row].LowStock {
						return cellStyle.Foreground(colorError)
					}
					return cellStyle
				})
			fmt.Fprintln(w, t.Render())
		}
	}
}

func renderHistory(w io.Writer, entries []core.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No history entries."))
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		fields := e.Fields()
		if e.Change > 0 {
			fields[4] = "+" + fields[4]
		}
		rows = append(rows, fields)
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("TIMESTAMP", "PRODUCT", "SIZE", "ACTION", "CHANGE", "FINAL").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}
