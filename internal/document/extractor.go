package document

import (
	"log/slog"

	"github.com/nikhilbhutani/docrag/pkg/textextract"
)

// NewExtractor builds the text extractor used by ingestion, with tesseract
// OCR for image uploads when the binary is installed.
func NewExtractor(ocrLanguages string) *textextract.Extractor {
	ocr := NewOCRService(ocrLanguages)
	if !ocr.IsAvailable() {
		slog.Warn("tesseract not found, image documents will fail extraction")
	}
	return textextract.New(
		textextract.WithOCR(ocr),
		textextract.WithLogger(slog.Default()),
	)
}
