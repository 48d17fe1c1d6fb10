package textextract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docrag/internal/models"
)

type fakeOCR struct {
	available bool
	text      string
	err       error
}

func (f *fakeOCR) IsAvailable() bool { return f.available }

func (f *fakeOCR) ExtractText(_ context.Context, _ []byte) (string, error) {
	return f.text, f.err
}

func TestDetect(t *testing.T) {
	tests := []struct {
		mime, filename string
		want           Format
	}{
		{"application/pdf", "report.bin", FormatPDF},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "x", FormatDOCX},
		{"text/plain; charset=utf-8", "notes", FormatText},
		{"application/octet-stream", "manual.PDF", FormatPDF},
		{"", "handbook.docx", FormatDOCX},
		{"application/octet-stream", "legacy.doc", FormatDOC},
		{"text/rtf", "", FormatRTF},
		{"", "table.csv", FormatCSV},
		{"text/markdown", "", FormatMarkdown},
		{"", "README.md", FormatMarkdown},
		{"text/html", "", FormatHTML},
		{"image/png", "", FormatImage},
		{"", "scan.TIFF", FormatImage},
		{"application/octet-stream", "blob", FormatUnknown},
		{"not a mime", "noext", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.mime+"|"+tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.mime, tt.filename))
		})
	}
}

func TestDetect_MIMEWinsOverExtension(t *testing.T) {
	assert.Equal(t, FormatText, Detect("text/plain", "looks-like.pdf"))
}

func TestEveryFormatHasDecoder(t *testing.T) {
	for f := range formatNames {
		_, ok := decoders[f]
		assert.True(t, ok, "missing decoder for %s", f)
	}
}

func TestExtract_PlainTextFamilies(t *testing.T) {
	e := New()
	ctx := context.Background()

	res, err := e.Extract(ctx, []byte("\xef\xbb\xbfHello plain text"), "text/plain", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello plain text", res.Content)
	assert.Equal(t, FormatText, res.Format)
	assert.Equal(t, "txt", res.Metadata["type"])

	res, err = e.Extract(ctx, []byte("id,name\n1,pump"), "text/csv", "a.csv")
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,pump", res.Content)

	res, err = e.Extract(ctx, []byte("# Title\n\nBody"), "", "doc.md")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, res.Format)
	assert.Contains(t, res.Content, "# Title")
}

func TestExtract_UnknownPrintableAccepted(t *testing.T) {
	res, err := New().Extract(context.Background(), []byte("generator maintenance log\nline two"), "application/octet-stream", "log.dat")
	require.NoError(t, err)
	assert.Equal(t, "generator maintenance log\nline two", res.Content)
	assert.Equal(t, FormatUnknown, res.Format)
}

func TestExtract_UnknownBinaryRejected(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0xff, 0xfe, 'a', 'b', 0x03, 0x04, 0x05}
	_, err := New().Extract(context.Background(), data, "application/octet-stream", "blob")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnsupportedFormat))
}

func TestLooksLikeText(t *testing.T) {
	assert.True(t, LooksLikeText([]byte("2026-10-18 pump restarted")))
	assert.False(t, LooksLikeText([]byte{0x4d, 0x5a, 0x00, 0x00, 0xff, 0xfe, 0x01}))
	assert.False(t, LooksLikeText(nil))
}

func TestPrintableRatio(t *testing.T) {
	assert.Equal(t, 1.0, PrintableRatio(nil))
	assert.Equal(t, 1.0, PrintableRatio([]byte("héllo\twörld\n")))
	assert.InDelta(t, 0.5, PrintableRatio([]byte{'a', 0x00, 'b', 0x01}), 1e-9)
	assert.InDelta(t, 0.5, PrintableRatio([]byte{'a', 0xff}), 1e-9)
}

func TestExtract_RTF(t *testing.T) {
	rtf := `{\rtf1\ansi{\fonttbl\f0\fswiss Helvetica;}\f0\pard Hello {\b world}\par Caf\'e9 line\tab end.}`
	res, err := New().Extract(context.Background(), []byte(rtf), "application/rtf", "memo.rtf")
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nCafé line\tend.", res.Content)
}

func TestExtract_RTFWindows1252Escapes(t *testing.T) {
	rtf := `{\rtf1\ansi\ansicpg1252 Prijs \'80 5, \'93offerte\'94 a\'96b}`
	res, err := New().Extract(context.Background(), []byte(rtf), "application/rtf", "offerte.rtf")
	require.NoError(t, err)
	assert.Equal(t, "Prijs € 5, “offerte” a–b", res.Content)
}

func TestExtract_RTFWithoutHeaderRejected(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte("plain words"), "text/rtf", "memo.rtf")
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestExtract_LegacyDOC(t *testing.T) {
	data := append([]byte{0xd0, 0xcf, 0x11, 0xe0, 0x00, 0x00}, []byte("Onderhoud van de generator")...)
	data = append(data, 0x00, 0x01, 0x02)
	data = append(data, []byte("ab")...)

	res, err := New().Extract(context.Background(), data, "application/msword", "old.doc")
	require.NoError(t, err)
	assert.Equal(t, "Onderhoud van de generator", res.Content)
	assert.Equal(t, "best-effort", res.Metadata["quality"])
}

func TestExtract_LegacyDOCUTF16(t *testing.T) {
	var data []byte
	for _, r := range "Storing rapport" {
		data = append(data, byte(r), 0x00)
	}
	data = append(data, 0x00, 0xd8)

	res, err := New().Extract(context.Background(), data, "", "old.doc")
	require.NoError(t, err)
	assert.Equal(t, "Storing rapport", res.Content)
}

func TestExtract_LegacyDOCEmpty(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte{0x00, 0x01, 0x02}, "application/msword", "old.doc")
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestExtract_HTML(t *testing.T) {
	html := `<html><head><title>Manual</title><style>p{}</style></head>
<body><h1>Generator</h1><p>Check   the oil.</p><script>var x = 1;</script><ul><li>Monthly</li></ul></body></html>`
	res, err := New().Extract(context.Background(), []byte(html), "text/html", "m.html")
	require.NoError(t, err)
	assert.Equal(t, "Generator\nCheck the oil.\nMonthly", res.Content)
	assert.Equal(t, "Manual", res.Metadata["title"])
}

func TestExtract_InvalidPDF(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte("definitely not a pdf"), "application/pdf", "x.pdf")
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestExtract_InvalidDOCX(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte("not a zip"), "", "x.docx")
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestExtract_ImageRequiresOCR(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte{0x89, 'P', 'N', 'G'}, "image/png", "scan.png")
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)

	_, err = New(WithOCR(&fakeOCR{available: false})).Extract(context.Background(), []byte{0x89}, "image/png", "scan.png")
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestExtract_ImageWithOCR(t *testing.T) {
	e := New(WithOCR(&fakeOCR{available: true, text: "scanned words"}))
	res, err := e.Extract(context.Background(), []byte{0x89}, "", "scan.jpg")
	require.NoError(t, err)
	assert.Equal(t, "scanned words", res.Content)
	assert.Equal(t, FormatImage, res.Format)

	e = New(WithOCR(&fakeOCR{available: true, err: errors.New("tesseract crashed")}))
	_, err = e.Extract(context.Background(), []byte{0x89}, "", "scan.jpg")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "tesseract crashed"))
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("a/b/c.PDF"))
	assert.True(t, IsSupported("notes.md"))
	assert.False(t, IsSupported("archive.zip"))
	assert.Contains(t, SupportedExtensions(), ".docx")
}
