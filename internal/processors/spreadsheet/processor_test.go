package spreadsheet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	excelize "github.com/xuri/excelize/v2"

	"github.com/meridian-labs/ctxd/internal/core/domain"
)

// writeWorkbook builds an .xlsx file with a Sales sheet (3 data rows, one
// formula cell) and an empty Notes sheet.
func writeWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Sales"))

	rows := [][]any{
		{"item", "qty", "price"},
		{"apple", 3, 1.5},
		{"pear", 5, 2.0},
		{"plum", 2, 0.5},
	}
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sales", cell, v))
		}
	}
	require.NoError(t, f.SetCellFormula("Sales", "D2", "B2*C2"))

	_, err := f.NewSheet("Notes")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "inventory.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func rawFor(path string) *domain.RawContextProperties {
	return &domain.RawContextProperties{
		ObjectID:    "obj-xl",
		Source:      domain.SourceLocalFile,
		ContentPath: path,
	}
}

func TestProcessEmitsOneContextPerNonEmptySheet(t *testing.T) {
	path := writeWorkbook(t)
	p := New()

	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1, "empty Notes sheet must be skipped")

	pc := results[0]
	assert.Equal(t, "obj-xl_Sales", pc.ID)
	assert.Equal(t, "inventory.xlsx - Sales", pc.ExtractedData.Title)
	assert.Equal(t, 90, pc.ExtractedData.Confidence)
	assert.Equal(t, 70, pc.ExtractedData.Importance)
	assert.Contains(t, pc.ExtractedData.Keywords, "excel")
	assert.Contains(t, pc.ExtractedData.Keywords, "Sales")
}

func TestHeaderChunk(t *testing.T) {
	path := writeWorkbook(t)
	p := New()

	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1)

	chunks := results[0].Chunks
	require.NotEmpty(t, chunks)
	header := chunks[0]

	assert.Equal(t, 0, header.Index)
	assert.True(t, strings.HasPrefix(header.Text, "Sheet: Sales\n"))
	assert.Contains(t, header.Text, "Columns: item, qty, price")
	assert.Contains(t, header.Text, "Rows: 3, Columns: 3")
	assert.Contains(t, header.Text, "item: object")
	assert.Contains(t, header.Text, "qty: int64")
	assert.Contains(t, header.Text, "price: float64")
	assert.Contains(t, header.Text, "qty: min=2, max=5, mean=3.33")
	assert.Equal(t, []string{"Sales", "header", "metadata"}, header.Keywords)
}

func TestDataChunkAndFormulas(t *testing.T) {
	path := writeWorkbook(t)
	p := New()

	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1)

	chunks := results[0].Chunks
	require.Len(t, chunks, 2)

	data := chunks[1]
	assert.Equal(t, 1, data.Index)
	assert.True(t, strings.HasPrefix(data.Text, "Sheet: Sales (Rows 1 to 3)\n"))
	assert.Contains(t, data.Text, "apple")
	assert.Contains(t, data.Text, "Formulas:\nD2: =B2*C2")
	assert.Contains(t, data.Keywords, "rows_1_to_3")
	assert.Contains(t, data.Keywords, "item")
}

func TestRowBatching(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "n"))
	for i := 0; i < 5; i++ {
		cell := fmt.Sprintf("A%d", i+2)
		require.NoError(t, f.SetCellValue("Sheet1", cell, i))
	}
	path := filepath.Join(t.TempDir(), "numbers.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	p := New(WithMaxRowsPerChunk(2))
	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1)

	chunks := results[0].Chunks
	// Header + ceil(5/2) batches, indexed densely.
	require.Len(t, chunks, 4)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
	assert.True(t, strings.HasPrefix(chunks[1].Text, "Sheet: Sheet1 (Rows 1 to 2)\n"))
	assert.True(t, strings.HasPrefix(chunks[3].Text, "Sheet: Sheet1 (Rows 5 to 5)\n"))
}

func TestMetadata(t *testing.T) {
	path := writeWorkbook(t)
	p := New()

	results := p.Process(context.Background(), rawFor(path))
	require.Len(t, results, 1)

	md := results[0].Properties.AdditionalMetadata
	assert.Equal(t, "inventory.xlsx", md["file_name"])
	assert.Equal(t, "Sales", md["sheet_name"])
	assert.Equal(t, 4, md["max_row"])
	assert.Equal(t, "excel_processor", md["processor"])
}

func TestProcessCorruptFileYieldsNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o644))

	p := New()
	assert.Empty(t, p.Process(context.Background(), rawFor(path)))
}

func TestCanProcess(t *testing.T) {
	path := writeWorkbook(t)
	p := New()

	assert.True(t, p.CanProcess(rawFor(path)))
	assert.False(t, p.CanProcess(rawFor(filepath.Join(t.TempDir(), "absent.xlsx"))))
	assert.False(t, p.CanProcess(&domain.RawContextProperties{
		Source:      domain.SourceLocalFile,
		ContentPath: "",
	}))
}
