package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
)

// EngineConfig bounds what the built-in engine will accept.
type EngineConfig struct {
	AllowedExtensions []string
	MaxFileSizeMB     int
}

// Engine is the built-in extraction implementation of Parser. It handles
// text-family formats natively and PDFs structurally (validation and page
// count via pdfcpu). Image formats require an OCR engine, which this build
// does not ship; requesting them surfaces ErrUnavailable.
type Engine struct {
	allowed map[string]bool
	maxSize int64
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
	".gif": true, ".tiff": true, ".webp": true,
}

// NewEngine constructs the built-in engine. An empty AllowedExtensions list
// disables the extension check.
func NewEngine(cfg EngineConfig) *Engine {
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	maxMB := cfg.MaxFileSizeMB
	if maxMB <= 0 {
		maxMB = 10
	}
	return &Engine{allowed: allowed, maxSize: int64(maxMB) << 20}
}

func (e *Engine) Parse(ctx context.Context, content []byte, filename string, opts Options) (Handle, Metadata, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	if len(e.allowed) > 0 && !e.allowed[ext] {
		return nil, Metadata{}, &ParseError{Filename: filename, Cause: fmt.Sprintf("file extension %q is not allowed", ext)}
	}
	if int64(len(content)) > e.maxSize {
		return nil, Metadata{}, &ParseError{Filename: filename, Cause: fmt.Sprintf("file size exceeds maximum of %dMB", e.maxSize>>20)}
	}

	var (
		doc *Document
		err error
	)
	switch {
	case imageExtensions[ext]:
		return nil, Metadata{}, fmt.Errorf("%w: OCR engine required for %s files", ErrUnavailable, ext)
	case ext == ".doc" || ext == ".xls":
		return nil, Metadata{}, fmt.Errorf("%w: legacy binary %s files require a conversion engine", ErrUnavailable, ext)
	case ext == ".pdf":
		doc, err = e.parsePDF(content, filename)
	case ext == ".docx":
		doc, err = e.parseDocx(content, filename)
	case ext == ".xlsx":
		doc, err = e.parseXlsx(content, filename)
	case ext == ".csv":
		doc, err = e.parseCSV(content, filename)
	case ext == ".json":
		doc, err = e.parseJSON(content, filename)
	case ext == ".html" || ext == ".xml":
		doc, err = e.parseMarkup(content, filename)
	default:
		// .txt, .md, .log and anything unrecognized fall back to plain text.
		doc = e.parseText(content, filename)
	}
	if err != nil {
		return nil, Metadata{}, err
	}

	meta := Metadata{
		Filename:           filename,
		PageCount:          doc.PageCount,
		HasTables:          doc.HasTables,
		StructurePreserved: opts.PreserveHierarchy && doc.hasStructure(),
	}
	return doc, meta, nil
}

func (e *Engine) Export(ctx context.Context, h Handle, format Format) (string, error) {
	doc, ok := h.(*Document)
	if !ok {
		return "", &ExportError{Format: format, Cause: "handle was not produced by this engine"}
	}
	return doc.render(format)
}

// parseText decodes bytes as UTF-8, falling back to a byte-wise latin-1 read
// for legacy encodings, and splits paragraphs on blank lines. Markdown-style
// heading paragraphs become heading blocks.
func (e *Engine) parseText(content []byte, filename string) *Document {
	text := decodeBytes(content)
	doc := &Document{SourceName: filename}
	for _, para := range strings.Split(text, "\n\n") {
		if para = strings.TrimSpace(para); para == "" {
			continue
		}
		if heading, ok := headingLine(para); ok {
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockHeading, Text: heading})
			continue
		}
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockText, Text: para})
	}
	return doc
}

// headingLine recognizes a single-line "#"-prefixed paragraph.
func headingLine(para string) (string, bool) {
	if !strings.HasPrefix(para, "#") || strings.Contains(para, "\n") {
		return "", false
	}
	text := strings.TrimSpace(strings.TrimLeft(para, "#"))
	if text == "" {
		return "", false
	}
	return text, true
}

func (e *Engine) parseCSV(content []byte, filename string) (*Document, error) {
	r := csv.NewReader(strings.NewReader(decodeBytes(content)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	doc := &Document{SourceName: filename}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed rows degrade to plain text, like the legacy behavior.
			return e.parseText(content, filename), nil
		}
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockRow, Text: strings.Join(record, "\t")})
	}
	doc.HasTables = len(doc.Blocks) > 0
	return doc, nil
}

func (e *Engine) parseJSON(content []byte, filename string) (*Document, error) {
	var v any
	if err := json.Unmarshal(content, &v); err != nil {
		return e.parseText(content, filename), nil
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return e.parseText(content, filename), nil
	}
	return &Document{
		SourceName: filename,
		Blocks:     []Block{{Kind: BlockText, Text: string(pretty)}},
	}, nil
}

// parseMarkup strips tags and keeps text nodes, skipping script and style
// bodies.
func (e *Engine) parseMarkup(content []byte, filename string) (*Document, error) {
	doc := &Document{SourceName: filename}
	tokenizer := html.NewTokenizer(bytes.NewReader(content))
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if len(doc.Blocks) == 0 {
				return e.parseText(content, filename), nil
			}
			return doc, nil
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				doc.Blocks = append(doc.Blocks, Block{Kind: BlockText, Text: text})
			}
		}
	}
}

// parseDocx reads the main document part of the OOXML archive and emits one
// text block per paragraph. Word documents are zip archives of XML, so the
// extraction needs no dedicated library.
func (e *Engine) parseDocx(content []byte, filename string) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &ParseError{Filename: filename, Cause: fmt.Sprintf("invalid Word document: %v", err), Err: err}
	}

	var part io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			if part, err = f.Open(); err != nil {
				return nil, &ParseError{Filename: filename, Cause: fmt.Sprintf("read document part: %v", err), Err: err}
			}
			break
		}
	}
	if part == nil {
		return nil, &ParseError{Filename: filename, Cause: "not a Word document: missing document part"}
	}
	defer part.Close()

	doc := &Document{SourceName: filename}
	dec := xml.NewDecoder(part)
	var para strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Filename: filename, Cause: fmt.Sprintf("malformed document part: %v", err), Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(para.String()); text != "" {
					doc.Blocks = append(doc.Blocks, Block{Kind: BlockText, Text: text})
				}
				para.Reset()
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return doc, nil
}

// parseXlsx walks every sheet, emitting the sheet name as a heading and each
// row with cells joined by tabs, matching the CSV shape.
func (e *Engine) parseXlsx(content []byte, filename string) (*Document, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &ParseError{Filename: filename, Cause: fmt.Sprintf("invalid Excel workbook: %v", err), Err: err}
	}
	defer f.Close()

	doc := &Document{SourceName: filename}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, &ParseError{Filename: filename, Cause: fmt.Sprintf("read sheet %q: %v", sheet, err), Err: err}
		}
		if len(rows) == 0 {
			continue
		}
		doc.Blocks = append(doc.Blocks, Block{Kind: BlockHeading, Text: sheet})
		for _, row := range rows {
			doc.Blocks = append(doc.Blocks, Block{Kind: BlockRow, Text: strings.Join(row, "\t")})
		}
		doc.HasTables = true
	}
	return doc, nil
}

// parsePDF validates the document and records its page count. Text content
// extraction needs an OCR/layout engine, so the content degrades to a notice
// while the structural metadata stays accurate.
func (e *Engine) parsePDF(content []byte, filename string) (*Document, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	pageCount, err := api.PageCount(bytes.NewReader(content), conf)
	if err != nil {
		return nil, &ParseError{
			Filename: filename,
			Cause:    fmt.Sprintf("invalid PDF: %v; the file may be corrupted or password-protected", err),
			Err:      err,
		}
	}

	return &Document{
		SourceName: filename,
		PageCount:  pageCount,
		Blocks: []Block{{
			Kind: BlockNotice,
			Text: fmt.Sprintf("PDF document with %d page(s); text layer extraction requires an OCR engine", pageCount),
		}},
	}, nil
}

// decodeBytes returns valid UTF-8 text, reading each byte as a latin-1 code
// point when the content is not UTF-8.
func decodeBytes(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return string(runes)
}
