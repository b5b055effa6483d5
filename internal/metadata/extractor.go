// Package metadata implements two-tier file metadata extraction: a
// universal filesystem tier for every file, plus a format-specific tier
// keyed by extension category. Format-tier failures degrade the record by
// omission instead of failing extraction.
package metadata

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/saintfish/chardet"
	excelize "github.com/xuri/excelize/v2"

	"github.com/meridian-labs/ctxd/internal/core/ports/driven"
	"github.com/meridian-labs/ctxd/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.MetadataExtractor = (*Extractor)(nil)

const previewLimit = 500

// Extractor derives universal and format-specific metadata from files.
type Extractor struct {
	extractors map[string]func(path string) (map[string]any, error)
}

// NewExtractor creates an extractor with the built-in format tiers.
func NewExtractor() *Extractor {
	e := &Extractor{}
	e.extractors = map[string]func(string) (map[string]any, error){
		"pdf":   e.pdfMetadata,
		"docx":  e.docxMetadata,
		"xlsx":  e.xlsxMetadata,
		"image": e.imageMetadata,
		"code":  e.codeMetadata,
	}
	return e
}

// Extract returns the metadata record for the file at path. Only a
// missing or unstat-able file is an error; format-tier failures are
// logged and omitted.
func (e *Extractor) Extract(path string) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	metadata := basicMetadata(path, info)

	category := detectCategory(strings.ToLower(filepath.Ext(path)))
	if extract, ok := e.extractors[category]; ok {
		specific, err := extract(path)
		if err != nil {
			logger.Warn("Extracting %s metadata from %s: %v", category, path, err)
		} else {
			for k, v := range specific {
				metadata[k] = v
			}
		}
	}

	return metadata, nil
}

func basicMetadata(path string, info os.FileInfo) map[string]any {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	sizeMB := math.Round(float64(info.Size())/(1024*1024)*100) / 100
	ext := strings.ToLower(filepath.Ext(path))
	name := filepath.Base(path)

	metadata := map[string]any{
		"file_name":      name,
		"file_path":      absPath,
		"file_size":      info.Size(),
		"file_size_mb":   sizeMB,
		"file_extension": ext,
		"file_stem":      strings.TrimSuffix(name, filepath.Ext(name)),
		"permissions":    fmt.Sprintf("%03o", info.Mode().Perm()),
	}

	created, modified, accessed := fileTimes(info)
	metadata["created_time"] = created.Format(time.RFC3339)
	metadata["modified_time"] = modified.Format(time.RFC3339)
	metadata["accessed_time"] = accessed.Format(time.RFC3339)

	if mt, err := mimetype.DetectFile(path); err == nil {
		metadata["mime_type"] = mt.String()
	}

	return metadata
}

// fileTimes reads change/modify/access times from the stat record,
// falling back to the modification time when the platform data is
// unavailable.
func fileTimes(info os.FileInfo) (created, modified, accessed time.Time) {
	modified = info.ModTime()
	created = modified
	accessed = modified

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		created = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
		accessed = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	}
	return created, modified, accessed
}

// detectCategory maps an extension to a format-tier category.
func detectCategory(ext string) string {
	switch ext {
	case ".pdf":
		return "pdf"
	case ".docx", ".doc":
		return "docx"
	case ".xlsx", ".xls":
		return "xlsx"
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return "image"
	case ".py", ".js", ".java", ".cpp", ".c", ".go", ".rs":
		return "code"
	default:
		return ""
	}
}

func (e *Extractor) pdfMetadata(path string) (map[string]any, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	metadata := map[string]any{}

	info := reader.Trailer().Key("Info")
	for _, key := range []string{"Title", "Author", "Subject", "Creator", "Producer"} {
		v := info.Key(key)
		if v.Kind() == pdf.String && v.Text() != "" {
			metadata["pdf_"+strings.ToLower(key)] = v.Text()
		}
	}

	metadata["pdf_page_count"] = reader.NumPage()

	if reader.NumPage() > 0 {
		page := reader.Page(1)
		if !page.V.IsNull() {
			if text, err := page.GetPlainText(nil); err == nil && text != "" {
				metadata["pdf_first_page_preview"] = truncate(text, previewLimit)
			}
		}
	}

	return metadata, nil
}

// docxCoreProps maps docProps/core.xml. Element names match on local
// name, which covers the dc/cp/dcterms namespaces.
type docxCoreProps struct {
	Title          string `xml:"title"`
	Creator        string `xml:"creator"`
	Subject        string `xml:"subject"`
	Keywords       string `xml:"keywords"`
	Created        string `xml:"created"`
	Modified       string `xml:"modified"`
	LastModifiedBy string `xml:"lastModifiedBy"`
}

func (e *Extractor) docxMetadata(path string) (map[string]any, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening docx archive: %w", err)
	}
	defer archive.Close()

	metadata := map[string]any{}

	if props, err := readDocxCoreProps(&archive.Reader); err == nil {
		setIfPresent(metadata, "docx_title", props.Title)
		setIfPresent(metadata, "docx_author", props.Creator)
		setIfPresent(metadata, "docx_subject", props.Subject)
		setIfPresent(metadata, "docx_keywords", props.Keywords)
		setIfPresent(metadata, "docx_created", props.Created)
		setIfPresent(metadata, "docx_modified", props.Modified)
		setIfPresent(metadata, "docx_last_modified_by", props.LastModifiedBy)
	}

	paragraphs, tables, preview, err := scanDocxBody(&archive.Reader)
	if err != nil {
		return nil, err
	}
	metadata["docx_paragraph_count"] = paragraphs
	metadata["docx_table_count"] = tables
	if preview != "" {
		metadata["docx_text_preview"] = truncate(preview, previewLimit)
	}

	return metadata, nil
}

func readDocxCoreProps(archive *zip.Reader) (*docxCoreProps, error) {
	rc, err := openZipEntry(archive, "docProps/core.xml")
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var props docxCoreProps
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return nil, err
	}
	return &props, nil
}

// scanDocxBody streams word/document.xml counting paragraphs and tables
// and collecting the first five paragraphs' text.
func scanDocxBody(archive *zip.Reader) (paragraphs, tables int, preview string, err error) {
	rc, err := openZipEntry(archive, "word/document.xml")
	if err != nil {
		return 0, 0, "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var previewParts []string
	var current strings.Builder
	inParagraph := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				paragraphs++
				inParagraph = true
				current.Reset()
			case "tbl":
				tables++
			}
		case xml.CharData:
			if inParagraph && len(previewParts) < 5 {
				current.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				inParagraph = false
				if text := strings.TrimSpace(current.String()); text != "" && len(previewParts) < 5 {
					previewParts = append(previewParts, text)
				}
			}
		}
	}

	return paragraphs, tables, strings.Join(previewParts, "\n"), nil
}

func openZipEntry(archive *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range archive.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("entry %s not found", name)
}

func (e *Extractor) xlsxMetadata(path string) (map[string]any, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	metadata := map[string]any{}

	if props, err := f.GetDocProps(); err == nil && props != nil {
		setIfPresent(metadata, "xlsx_title", props.Title)
		setIfPresent(metadata, "xlsx_creator", props.Creator)
		setIfPresent(metadata, "xlsx_subject", props.Subject)
		setIfPresent(metadata, "xlsx_keywords", props.Keywords)
		setIfPresent(metadata, "xlsx_created", props.Created)
		setIfPresent(metadata, "xlsx_modified", props.Modified)
		setIfPresent(metadata, "xlsx_last_modified_by", props.LastModifiedBy)
	}

	sheets := f.GetSheetList()
	metadata["xlsx_sheet_count"] = len(sheets)
	metadata["xlsx_sheet_names"] = sheets

	if len(sheets) > 0 {
		rows, err := f.GetRows(sheets[0])
		if err == nil {
			maxCol := 0
			for _, row := range rows {
				if len(row) > maxCol {
					maxCol = len(row)
				}
			}
			metadata["xlsx_first_sheet_rows"] = len(rows)
			metadata["xlsx_first_sheet_cols"] = maxCol
		}
	}

	return metadata, nil
}

func (e *Extractor) imageMetadata(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image header: %w", err)
	}

	return map[string]any{
		"image_format": strings.ToUpper(format),
		"image_width":  cfg.Width,
		"image_height": cfg.Height,
		"image_size":   fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
	}, nil
}

func (e *Extractor) codeMetadata(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(string(raw), "\n")
	nonEmpty, comments := 0, 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") ||
			strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			comments++
		}
	}

	metadata := map[string]any{
		"code_total_lines":     len(lines),
		"code_non_empty_lines": nonEmpty,
		"code_comment_lines":   comments,
	}

	detector := chardet.NewTextDetector()
	if result, err := detector.DetectBest(raw); err == nil {
		metadata["code_encoding"] = result.Charset
		metadata["code_encoding_confidence"] = result.Confidence
	}

	return metadata, nil
}

func setIfPresent(metadata map[string]any, key, value string) {
	if value != "" {
		metadata[key] = value
	}
}

func truncate(s string, limit int) string {
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
