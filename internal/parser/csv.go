package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

const (
	csvRowsPerPage = 100
	csvMaxRows     = 10_000
)

// CSVParser turns a header row + data rows into "Header: value | Header: value"
// lines, 100 rows per logical page, with a hard 10,000-row cap (§4.3).
type CSVParser struct{}

func NewCSVParser() *CSVParser { return &CSVParser{} }

func (p *CSVParser) Label() string { return "csv" }

func (p *CSVParser) Parse(data []byte) (*Result, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // tolerate ragged rows; parse errors are collected, not fatal

	header, err := r.Read()
	if err == io.EOF {
		return &Result{Metadata: map[string]any{}, Parser: p.Label()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	var lines []string
	var parseErrors []string
	truncated := false
	rowCount := 0

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, err.Error())
			continue
		}

		if rowCount >= csvMaxRows {
			truncated = true
			continue
		}
		lines = append(lines, formatRow(header, record))
		rowCount++
	}

	var pages []Page
	pageNum := 1
	for start := 0; start < len(lines); start += csvRowsPerPage {
		end := start + csvRowsPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, Page{PageNumber: pageNum, Text: strings.Join(lines[start:end], "\n")})
		pageNum++
	}

	meta := map[string]any{
		"truncated": truncated,
		"rowCount":  rowCount,
	}
	if len(parseErrors) > 0 {
		meta["parseErrors"] = parseErrors
	}

	res := &Result{Pages: pages, Metadata: meta, Parser: p.Label()}
	res.totals()
	return res, nil
}

func formatRow(header, record []string) string {
	var parts []string
	for i, val := range record {
		val = strings.TrimSpace(val)
		if val == "" {
			continue
		}
		name := fmt.Sprintf("col%d", i+1)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		parts = append(parts, fmt.Sprintf("%s: %s", name, val))
	}
	return strings.Join(parts, " | ")
}
