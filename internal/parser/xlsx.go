package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const xlsxMaxRowsPerSheet = 5_000

// XLSXParser maps each worksheet to one logical page, formatted the same way
// as the CSV parser's rows, with a per-sheet 5,000-data-row hard cap (§4.3).
// excelize resolves formulas to their cached value and applies date number
// formats during GetRows, so no extra date/formula handling is needed here.
type XLSXParser struct{}

func NewXLSXParser() *XLSXParser { return &XLSXParser{} }

func (p *XLSXParser) Label() string { return "xlsx" }

func (p *XLSXParser) Parse(data []byte) (*Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xlsx: open: %w", err)
	}
	defer f.Close()

	sheetNames := f.GetSheetList()
	sheetMeta := make(map[string]any, len(sheetNames))
	var pages []Page
	pageNum := 1
	processed := 0

	for _, name := range sheetNames {
		rows, err := f.GetRows(name)
		if err != nil {
			sheetMeta[name] = map[string]any{"error": err.Error()}
			continue
		}
		if len(rows) < 2 {
			// Empty or header-only sheets are skipped.
			continue
		}

		header := rows[0]
		dataRows := rows[1:]
		truncated := false
		if len(dataRows) > xlsxMaxRowsPerSheet {
			dataRows = dataRows[:xlsxMaxRowsPerSheet]
			truncated = true
		}

		var lines []string
		for _, row := range dataRows {
			lines = append(lines, formatRow(header, row))
		}

		pageText := fmt.Sprintf("[Sheet: %s]\n%s", name, strings.Join(lines, "\n"))
		pages = append(pages, Page{PageNumber: pageNum, Text: pageText})
		pageNum++
		processed++

		sheetMeta[name] = map[string]any{"rows": len(dataRows), "truncated": truncated}
	}

	meta := map[string]any{
		"sheetCount":      len(sheetNames),
		"processedSheets": processed,
		"sheets":          sheetMeta,
	}

	res := &Result{Pages: pages, Metadata: meta, Parser: p.Label()}
	res.totals()
	return res, nil
}
