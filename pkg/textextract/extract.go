package textextract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"code.sajari.com/docconv/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"github.com/nikhilbhutani/docrag/internal/models"
)

// MinPrintableRatio is the share of printable runes an unknown file needs to
// be accepted as plain text.
const MinPrintableRatio = 0.7

type ExtractedText struct {
	Content  string
	Format   Format
	Pages    int
	Metadata map[string]string
}

// OCR recognises text in raster images.
type OCR interface {
	IsAvailable() bool
	ExtractText(ctx context.Context, image []byte) (string, error)
}

type decodeFunc func(ctx context.Context, e *Extractor, data []byte) (*ExtractedText, error)

var decoders = map[Format]decodeFunc{
	FormatPDF:      decodePDF,
	FormatDOCX:     decodeDOCX,
	FormatDOC:      decodeDOC,
	FormatRTF:      decodeRTF,
	FormatText:     decodeText,
	FormatCSV:      decodeText,
	FormatMarkdown: decodeText,
	FormatHTML:     decodeHTML,
	FormatImage:    decodeImage,
	FormatUnknown:  decodeUnknown,
}

// Extractor turns raw file bytes into plain text. It has no side effects
// beyond running the optional OCR engine.
type Extractor struct {
	ocr    OCR
	logger *slog.Logger
}

type Option func(*Extractor)

func WithOCR(ocr OCR) Option {
	return func(e *Extractor) { e.ocr = ocr }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract dispatches on Detect(mimeType, filename). Failures to interpret
// the bytes are reported as models.ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType, filename string) (*ExtractedText, error) {
	format := Detect(mimeType, filename)
	decode, ok := decoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: no decoder for %s", models.ErrUnsupportedFormat, format)
	}

	result, err := decode(ctx, e, data)
	if err != nil {
		return nil, err
	}
	result.Format = format
	if result.Metadata == nil {
		result.Metadata = map[string]string{}
	}
	result.Metadata["type"] = format.String()

	e.logger.Debug("extracted text",
		slog.String("filename", filename),
		slog.String("format", format.String()),
		slog.Int("text_length", len(result.Content)))

	return result, nil
}

func unsupported(format string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrUnsupportedFormat, format, err)
}

func decodePDF(_ context.Context, _ *Extractor, data []byte) (*ExtractedText, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, unsupported("open PDF", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return &ExtractedText{Content: buf.String(), Pages: numPages}, nil
}

func decodeDOCX(_ context.Context, _ *Extractor, data []byte) (*ExtractedText, error) {
	body, meta, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return nil, unsupported("open DOCX", err)
	}
	return &ExtractedText{Content: body, Pages: 1, Metadata: meta}, nil
}

func decodeText(_ context.Context, _ *Extractor, data []byte) (*ExtractedText, error) {
	return &ExtractedText{Content: decodeUTF8(data), Pages: 1}, nil
}

func decodeHTML(_ context.Context, _ *Extractor, data []byte) (*ExtractedText, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, unsupported("parse HTML", err)
	}
	doc.Find("script, style, noscript").Remove()

	meta := map[string]string{}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}

	var parts []string
	doc.Find("body").Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		parts = append(parts, strings.Join(strings.Fields(doc.Find("body").Text()), " "))
	}

	return &ExtractedText{Content: strings.Join(parts, "\n"), Pages: 1, Metadata: meta}, nil
}

func decodeImage(ctx context.Context, e *Extractor, data []byte) (*ExtractedText, error) {
	if e.ocr == nil || !e.ocr.IsAvailable() {
		return nil, fmt.Errorf("%w: image requires OCR, none available", models.ErrUnsupportedFormat)
	}
	text, err := e.ocr.ExtractText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("ocr image: %w", err)
	}
	return &ExtractedText{Content: text, Pages: 1}, nil
}

func decodeUnknown(_ context.Context, _ *Extractor, data []byte) (*ExtractedText, error) {
	ratio := PrintableRatio(data)
	if len(data) > 0 && ratio < MinPrintableRatio {
		return nil, fmt.Errorf("%w: printable ratio %.2f below %.2f", models.ErrUnsupportedFormat, ratio, MinPrintableRatio)
	}
	return &ExtractedText{Content: decodeUTF8(data), Pages: 1}, nil
}

// PrintableRatio is the share of runes in data that are printable or
// whitespace; every invalid UTF-8 byte counts as one non-printable rune.
func PrintableRatio(data []byte) float64 {
	var total, printable int
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		total++
		if r == utf8.RuneError && size <= 1 {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			printable++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(printable) / float64(total)
}

// LooksLikeText reports whether a non-empty sample would pass the unknown
// format check. Used to keep unrecognised files in directory walks.
func LooksLikeText(sample []byte) bool {
	return len(sample) > 0 && PrintableRatio(sample) >= MinPrintableRatio
}

func decodeUTF8(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return strings.ToValidUTF8(string(data), "�")
}
