package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"stockroom/pkg/domain"
)

// Column sets written as the header row of each file.
var (
	InventoryColumns = []string{"id", "category", "name", "size", "stock", "last_updated"}
	CategoryColumns  = []string{"category_name"}
	HistoryColumns   = []string{"timestamp", "product_name", "size", "action", "change", "final_stock"}
)

// ErrMalformed marks a file that exists but cannot be decoded.
var ErrMalformed = errors.New("malformed tabular file")

// readTable returns the header and data rows of a CSV file. A missing file
// yields fs.ErrNotExist.
func readTable(path string) ([]string, [][]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(raw))
	// Short rows are padded with blanks by cell.
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrMalformed, filepath.Base(path), err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: %s: no header row", ErrMalformed, filepath.Base(path))
	}
	return rows[0], rows[1:], nil
}

// columnIndex maps the required columns to their position in header.
func columnIndex(header, required []string, optional ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrMalformed, name)
		}
	}
	for _, name := range optional {
		if _, ok := idx[name]; !ok {
			idx[name] = -1
		}
	}
	return idx, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseInteger accepts plain integers and integral floats ("10.0"), which is
// how dataframe writers serialise integer columns that once held blanks.
func parseInteger(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrMalformed, raw)
	}
	return int64(f), nil
}

// LoadInventory reads the inventory file.
func LoadInventory(path string) ([]domain.StockItem, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	idx, err := columnIndex(header, InventoryColumns[:5], "last_updated")
	if err != nil {
		return nil, err
	}
	items := make([]domain.StockItem, 0, len(rows))
	for line, row := range rows {
		id, err := parseInteger(cell(row, idx["id"]))
		if err != nil {
			return nil, fmt.Errorf("row %d id: %w", line+2, err)
		}
		stock, err := parseInteger(cell(row, idx["stock"]))
		if err != nil {
			return nil, fmt.Errorf("row %d stock: %w", line+2, err)
		}
		items = append(items, domain.StockItem{
			ID:          id,
			Category:    cell(row, idx["category"]),
			Name:        cell(row, idx["name"]),
			Size:        cell(row, idx["size"]),
			Stock:       int(stock),
			LastUpdated: cell(row, idx["last_updated"]),
		})
	}
	return items, nil
}

// LoadCategories reads the category file.
func LoadCategories(path string) ([]string, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	idx, err := columnIndex(header, CategoryColumns)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, cell(row, idx["category_name"]))
	}
	return out, nil
}

// LoadHistory reads the history file. Timestamps are interpreted in loc.
func LoadHistory(path string, loc *time.Location) ([]domain.HistoryEntry, error) {
	header, rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	idx, err := columnIndex(header, HistoryColumns)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	out := make([]domain.HistoryEntry, 0, len(rows))
	for line, row := range rows {
		ts, err := time.ParseInLocation(domain.TimestampLayout, strings.TrimSpace(cell(row, idx["timestamp"])), loc)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d timestamp: %v", ErrMalformed, line+2, err)
		}
		change, err := parseInteger(cell(row, idx["change"]))
		if err != nil {
			return nil, fmt.Errorf("row %d change: %w", line+2, err)
		}
		final, err := parseInteger(cell(row, idx["final_stock"]))
		if err != nil {
			return nil, fmt.Errorf("row %d final_stock: %w", line+2, err)
		}
		out = append(out, domain.HistoryEntry{
			Timestamp:   ts,
			ProductName: cell(row, idx["product_name"]),
			Size:        cell(row, idx["size"]),
			Action:      domain.HistoryAction(cell(row, idx["action"])),
			Change:      int(change),
			FinalStock:  int(final),
		})
	}
	return out, nil
}

// WriteInventory encodes items with the inventory header. An empty slice still
// produces the header row.
func WriteInventory(w io.Writer, items []domain.StockItem) error {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, item.Fields())
	}
	return writeTable(w, InventoryColumns, rows)
}

// WriteCategories encodes category names with the category header.
func WriteCategories(w io.Writer, categories []string) error {
	rows := make([][]string, 0, len(categories))
	for _, name := range categories {
		rows = append(rows, []string{name})
	}
	return writeTable(w, CategoryColumns, rows)
}

// WriteHistory encodes entries with the history header.
func WriteHistory(w io.Writer, entries []domain.HistoryEntry) error {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, entry.Fields())
	}
	return writeTable(w, HistoryColumns, rows)
}

func writeTable(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// writeFileAtomic replaces path with the output of encode via a temp file and rename.
func writeFileAtomic(path string, encode func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if err := encode(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
