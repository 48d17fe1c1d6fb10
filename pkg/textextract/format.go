package textextract

import (
	"mime"
	"path/filepath"
	"strings"
)

// Format is a supported input family.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatDOCX
	FormatDOC
	FormatRTF
	FormatText
	FormatCSV
	FormatMarkdown
	FormatHTML
	FormatImage
)

var formatNames = map[Format]string{
	FormatUnknown:  "unknown",
	FormatPDF:      "pdf",
	FormatDOCX:     "docx",
	FormatDOC:      "doc",
	FormatRTF:      "rtf",
	FormatText:     "txt",
	FormatCSV:      "csv",
	FormatMarkdown: "markdown",
	FormatHTML:     "html",
	FormatImage:    "image",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

var mimeFormats = map[string]Format{
	"application/pdf":    FormatPDF,
	"application/x-pdf":  FormatPDF,
	"application/msword": FormatDOC,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"application/rtf":       FormatRTF,
	"text/rtf":              FormatRTF,
	"text/plain":            FormatText,
	"text/csv":              FormatCSV,
	"application/csv":       FormatCSV,
	"text/markdown":         FormatMarkdown,
	"text/x-markdown":       FormatMarkdown,
	"text/html":             FormatHTML,
	"application/xhtml+xml": FormatHTML,
	"image/png":             FormatImage,
	"image/jpeg":            FormatImage,
	"image/tiff":            FormatImage,
}

var extFormats = map[string]Format{
	".pdf":      FormatPDF,
	".docx":     FormatDOCX,
	".doc":      FormatDOC,
	".rtf":      FormatRTF,
	".txt":      FormatText,
	".text":     FormatText,
	".csv":      FormatCSV,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".png":      FormatImage,
	".jpg":      FormatImage,
	".jpeg":     FormatImage,
	".tif":      FormatImage,
	".tiff":     FormatImage,
}

// Detect resolves the format from the declared MIME type, falling back to
// the filename extension when the MIME type is generic or unrecognised.
func Detect(mimeType, filename string) Format {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		if f, ok := mimeFormats[strings.ToLower(mt)]; ok {
			return f
		}
	}
	if f, ok := extFormats[strings.ToLower(filepath.Ext(filename))]; ok {
		return f
	}
	return FormatUnknown
}

// SupportedExtensions lists the extensions Detect recognises, for directory walks.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extFormats))
	for ext := range extFormats {
		exts = append(exts, ext)
	}
	return exts
}

// IsSupported reports whether filename has an extension Detect recognises.
func IsSupported(filename string) bool {
	_, ok := extFormats[strings.ToLower(filepath.Ext(filename))]
	return ok
}
