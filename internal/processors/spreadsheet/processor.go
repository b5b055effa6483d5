// Package spreadsheet provides the workbook processor. Each sheet becomes
// its own processed context: a header chunk describing columns, inferred
// types and numeric statistics, followed by row batches with any formulas
// found in their range.
package spreadsheet

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	excelize "github.com/xuri/excelize/v2"

	"github.com/meridian-labs/ctxd/internal/core/domain"
	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
	"github.com/meridian-labs/ctxd/internal/logger"
	"github.com/meridian-labs/ctxd/internal/processors"
)

// Ensure Processor implements the interface.
var _ driven.Processor = (*Processor)(nil)

// DefaultMaxRowsPerChunk is the row-batch size for data chunks.
const DefaultMaxRowsPerChunk = 100

// .xls routes here too, but excelize cannot open the legacy binary
// format; such files fail at load time and produce no contexts.
var supportedExtensions = []string{".xlsx", ".xls", ".xlsm", ".xltx", ".xltm"}

// Processor chunks workbook files sheet by sheet.
type Processor struct {
	maxRowsPerChunk int
	extractFormulas bool
	extractComments bool
	detectTables    bool
}

// Option configures the spreadsheet processor.
type Option func(*Processor)

// WithMaxRowsPerChunk sets the data-chunk batch size.
func WithMaxRowsPerChunk(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxRowsPerChunk = n
		}
	}
}

// WithFormulaExtraction toggles formula capture in data chunks.
func WithFormulaExtraction(enabled bool) Option {
	return func(p *Processor) { p.extractFormulas = enabled }
}

// WithCommentExtraction toggles cell-comment capture in metadata.
func WithCommentExtraction(enabled bool) Option {
	return func(p *Processor) { p.extractComments = enabled }
}

// WithTableDetection toggles named-table capture in metadata.
func WithTableDetection(enabled bool) Option {
	return func(p *Processor) { p.detectTables = enabled }
}

// New creates a spreadsheet processor.
func New(opts ...Option) *Processor {
	p := &Processor{
		maxRowsPerChunk: DefaultMaxRowsPerChunk,
		extractFormulas: true,
		extractComments: true,
		detectTables:    true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "excel_processor"
}

// SupportedExtensions returns the extensions this processor handles.
func (p *Processor) SupportedExtensions() []string {
	return supportedExtensions
}

// CanProcess reports whether this processor accepts the raw context.
func (p *Processor) CanProcess(raw *domain.RawContextProperties) bool {
	return processors.Accepts(raw, supportedExtensions)
}

// Process opens the workbook and emits one processed context per
// non-empty sheet. Any failure yields an empty result.
func (p *Processor) Process(_ context.Context, raw *domain.RawContextProperties) []domain.ProcessedContext {
	path := raw.ContentPath
	logger.Info("Processing Excel file: %s", path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		logger.Warn("Opening workbook %s: %v", path, err)
		return nil
	}
	defer f.Close()

	var contexts []domain.ProcessedContext

	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			logger.Warn("Reading sheet %s of %s: %v", sheetName, path, err)
			continue
		}

		// A sheet without data rows produces no chunks and is skipped.
		if len(rows) < 2 {
			continue
		}

		sheet := newSheetTable(rows)
		metadata := p.sheetMetadata(f, path, sheetName, sheet)
		chunks := p.buildChunks(f, sheet, sheetName)
		if len(chunks) == 0 {
			continue
		}

		contexts = append(contexts, buildContext(raw, chunks, metadata, sheetName, p.Name()))
	}

	logger.Info("Successfully processed %d sheets from %s", len(contexts), path)
	return contexts
}

// sheetTable is the parsed grid of one sheet. The tabular view follows the
// header row's width; maxCol tracks the widest row so formula scanning
// still covers headerless columns.
type sheetTable struct {
	columns []string
	data    [][]string
	maxRow  int
	maxCol  int
}

func newSheetTable(rows [][]string) *sheetTable {
	maxCol := 0
	for _, row := range rows {
		if len(row) > maxCol {
			maxCol = len(row)
		}
	}

	columns := rows[0]
	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		padded := make([]string, len(columns))
		copy(padded, row)
		data = append(data, padded)
	}

	return &sheetTable{
		columns: columns,
		data:    data,
		maxRow:  len(rows),
		maxCol:  maxCol,
	}
}

func (p *Processor) sheetMetadata(f *excelize.File, path, sheetName string, sheet *sheetTable) map[string]any {
	metadata := map[string]any{
		"file_name":  filepath.Base(path),
		"file_path":  path,
		"sheet_name": sheetName,
		"max_row":    sheet.maxRow,
		"max_column": sheet.maxCol,
	}

	if dims, err := f.GetSheetDimension(sheetName); err == nil {
		metadata["dimensions"] = dims
	}

	if p.detectTables {
		metadata["tables"] = detectTables(f, sheetName)
	}

	if p.extractComments {
		if comments := collectComments(f, sheetName); len(comments) > 0 {
			metadata["comments"] = comments
		}
	}

	return metadata
}

func detectTables(f *excelize.File, sheetName string) []map[string]string {
	tables := []map[string]string{}

	defined, err := f.GetTables(sheetName)
	if err != nil {
		logger.Debug("Detecting tables in %s: %v", sheetName, err)
		return tables
	}
	for _, tbl := range defined {
		tables = append(tables, map[string]string{
			"name":  tbl.Name,
			"range": tbl.Range,
			"type":  "excel_table",
		})
	}

	return tables
}

func collectComments(f *excelize.File, sheetName string) []map[string]string {
	comments, err := f.GetComments(sheetName)
	if err != nil {
		logger.Debug("Reading comments in %s: %v", sheetName, err)
		return nil
	}

	out := make([]map[string]string, 0, len(comments))
	for _, c := range comments {
		out = append(out, map[string]string{
			"cell":    c.Cell,
			"comment": c.Text,
		})
	}
	return out
}

// buildChunks emits the header chunk followed by row batches. Indices are
// dense from zero.
func (p *Processor) buildChunks(f *excelize.File, sheet *sheetTable, sheetName string) []domain.Chunk {
	chunks := []domain.Chunk{{
		Text:     headerChunkText(sheet, sheetName),
		Index:    0,
		Keywords: []string{sheetName, "header", "metadata"},
	}}

	for i := 0; i < len(sheet.data); i += p.maxRowsPerChunk {
		end := i + p.maxRowsPerChunk
		if end > len(sheet.data) {
			end = len(sheet.data)
		}
		batch := sheet.data[i:end]

		var b strings.Builder
		fmt.Fprintf(&b, "Sheet: %s (Rows %d to %d)\n", sheetName, i+1, i+len(batch))
		b.WriteString(renderTable(sheet.columns, batch))
		b.WriteString("\n")

		if p.extractFormulas {
			// Sheet rows are 1-based and offset by the header row.
			if formulas := extractFormulas(f, sheetName, sheet.maxCol, i+2, i+len(batch)+1); len(formulas) > 0 {
				b.WriteString("\nFormulas:\n")
				b.WriteString(strings.Join(formulas, "\n"))
			}
		}

		keywords := []string{sheetName, fmt.Sprintf("rows_%d_to_%d", i+1, i+len(batch))}
		for j, col := range sheet.columns {
			if j == 5 {
				break
			}
			keywords = append(keywords, col)
		}

		chunks = append(chunks, domain.Chunk{
			Text:     b.String(),
			Index:    len(chunks),
			Keywords: keywords,
		})
	}

	return chunks
}

func headerChunkText(sheet *sheetTable, sheetName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sheet: %s\n", sheetName)
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(sheet.columns, ", "))
	fmt.Fprintf(&b, "Rows: %d, Columns: %d\n", len(sheet.data), len(sheet.columns))

	types := make([]string, len(sheet.columns))
	for i, col := range sheet.columns {
		types[i] = fmt.Sprintf("%s: %s", col, inferColumnType(sheet.data, i))
	}
	fmt.Fprintf(&b, "\nData Types:\n%s\n", strings.Join(types, "\n"))

	var numeric []string
	for i, col := range sheet.columns {
		t := inferColumnType(sheet.data, i)
		if t != "int64" && t != "float64" {
			continue
		}
		min, max, mean := columnStats(sheet.data, i)
		numeric = append(numeric, fmt.Sprintf("%s: min=%s, max=%s, mean=%.2f",
			col, formatNumber(min), formatNumber(max), mean))
	}
	if len(numeric) > 0 {
		fmt.Fprintf(&b, "\nNumeric Summary:\n%s\n", strings.Join(numeric, "\n"))
	}

	return b.String()
}

// inferColumnType mirrors dataframe dtype inference on cached cell values.
// Blank cells are ignored; a fully blank column is object.
func inferColumnType(data [][]string, col int) string {
	allInt, allFloat, allBool := true, true, true
	seen := false

	for _, row := range data {
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		seen = true

		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allFloat = false
		}
		if lower := strings.ToLower(v); lower != "true" && lower != "false" {
			allBool = false
		}
	}

	switch {
	case !seen:
		return "object"
	case allInt:
		return "int64"
	case allFloat:
		return "float64"
	case allBool:
		return "bool"
	default:
		return "object"
	}
}

func columnStats(data [][]string, col int) (min, max, mean float64) {
	count := 0
	for _, row := range data {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil {
			continue
		}
		if count == 0 || v < min {
			min = v
		}
		if count == 0 || v > max {
			max = v
		}
		mean += v
		count++
	}
	if count > 0 {
		mean /= float64(count)
	}
	return min, max, mean
}

// formatNumber prints integral values without a decimal point.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// renderTable produces a right-aligned, padded textual view of the rows.
func renderTable(columns []string, data [][]string) string {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}
	for _, row := range data {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(strings.Repeat(" ", widths[i]-len(cell)))
			b.WriteString(cell)
		}
		b.WriteString("\n")
	}

	writeRow(columns)
	for _, row := range data {
		writeRow(row)
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// extractFormulas collects "CELL: =FORMULA" lines for sheet rows
// startRow..endRow inclusive (1-based).
func extractFormulas(f *excelize.File, sheetName string, maxCol, startRow, endRow int) []string {
	var formulas []string

	for row := startRow; row <= endRow; row++ {
		for col := 1; col <= maxCol; col++ {
			cell, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				continue
			}
			formula, err := f.GetCellFormula(sheetName, cell)
			if err != nil || formula == "" {
				continue
			}
			formulas = append(formulas, fmt.Sprintf("%s: =%s", cell, formula))
		}
	}

	return formulas
}

func buildContext(
	raw *domain.RawContextProperties,
	chunks []domain.Chunk,
	metadata map[string]any,
	sheetName, processorName string,
) domain.ProcessedContext {
	fileName, _ := metadata["file_name"].(string)
	title := fmt.Sprintf("%s - %s", fileName, sheetName)
	summary := fmt.Sprintf("Excel sheet '%s' with %d rows and %d columns",
		sheetName, metadata["max_row"], metadata["max_column"])

	keywords := []string{sheetName, fileName, "excel", "spreadsheet"}
	if tables, ok := metadata["tables"].([]map[string]string); ok {
		for _, tbl := range tables {
			keywords = append(keywords, tbl["name"])
		}
	}
	keywords = domain.NormaliseTags(keywords, 0)

	metadata["processor"] = processorName
	now := time.Now()

	return domain.ProcessedContext{
		ID: fmt.Sprintf("%s_%s", raw.ObjectID, sheetName),
		Properties: domain.ContextProperties{
			ContextType:        domain.TypeSemanticContext,
			Source:             raw.Source,
			CreateTime:         now,
			UpdateTime:         now,
			ContentPath:        raw.ContentPath,
			ContentFormat:      domain.FormatText,
			Title:              title,
			Summary:            summary,
			Tags:               keywords,
			AdditionalMetadata: metadata,
		},
		Chunks: chunks,
		ExtractedData: domain.ExtractedData{
			Title:       title,
			Summary:     summary,
			Keywords:    keywords,
			ContextType: domain.TypeSemanticContext,
			Confidence:  domain.ClampScore(90),
			Importance:  domain.ClampScore(70),
		},
	}
}
