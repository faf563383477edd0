package report

import (
	"strings"
)

// Table is the tabular form of a vendor report: a header row plus data
// rows, columns split on the tab character.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Region marks the data region inside a report's lines: the index of the
// header row and the exclusive end of the data rows.
type Region struct {
	HeaderIndex int
	DataEnd     int
}

// RegionLocator locates the data region of a raw report. Vendor report
// formats differ; new variants plug in here without touching the parser.
type RegionLocator interface {
	Locate(lines []string) Region
}

// vendorLocator is the default heuristic for App Store finance reports.
// The header row is not guaranteed to be line 0 because vendors prepend
// summary blocks, so it is found by scanning for two known column names.
// Data rows end at a footer row (Total_Rows / Total_Amount) or at a
// blank line directly followed by a footer-looking row.
type vendorLocator struct {
	headerMarkers []string
	footerMarkers []string
}

// NewVendorLocator returns the default data-region heuristic.
func NewVendorLocator() RegionLocator {
	return &vendorLocator{
		headerMarkers: []string{"vendor identifier", "quantity"},
		footerMarkers: []string{"total_rows", "total_amount"},
	}
}

func (l *vendorLocator) Locate(lines []string) Region {
	headerIdx := -1
	for i, line := range lines {
		if l.isHeader(line) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		// Degrade gracefully: treat line 0 as the header.
		headerIdx = 0
	}

	dataEnd := len(lines)
	for i := headerIdx + 1; i < len(lines); i++ {
		line := lines[i]
		if l.isFooter(line) {
			dataEnd = i
			break
		}
		if strings.TrimSpace(line) == "" {
			next := nextNonEmpty(lines, i+1)
			if next == -1 || l.isFooter(lines[next]) {
				dataEnd = i
				break
			}
		}
	}

	return Region{HeaderIndex: headerIdx, DataEnd: dataEnd}
}

func (l *vendorLocator) isHeader(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range l.headerMarkers {
		if !strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

func (l *vendorLocator) isFooter(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range l.footerMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func nextNonEmpty(lines []string, from int) int {
	for i := from; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return -1
}

// Parse splits raw report text into a Table using the default locator.
func Parse(raw string) *Table {
	return ParseWith(raw, NewVendorLocator())
}

// ParseWith splits raw report text into a Table using the given locator.
func ParseWith(raw string, locator RegionLocator) *Table {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")

	region := locator.Locate(lines)

	t := &Table{
		Headers: splitColumns(lines[region.HeaderIndex]),
	}
	for i := region.HeaderIndex + 1; i < region.DataEnd && i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		t.Rows = append(t.Rows, splitColumns(lines[i]))
	}

	return t
}

func splitColumns(line string) []string {
	cols := strings.Split(line, "\t")
	for i, c := range cols {
		cols[i] = strings.TrimSpace(c)
	}
	return cols
}

// FindColumn returns the index of the first header whose name contains
// any of the given variants, case-insensitive. Returns -1 when absent.
func FindColumn(headers []string, variants ...string) int {
	for i, h := range headers {
		lower := strings.ToLower(strings.TrimSpace(h))
		for _, v := range variants {
			if strings.Contains(lower, v) {
				return i
			}
		}
	}
	return -1
}

// Cell returns the row value at column idx, or "" when the row is short.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
