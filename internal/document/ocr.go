package document

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// OCRService runs the tesseract CLI over image bytes piped on stdin.
type OCRService struct {
	tesseractPath string
	languages     string

	once      sync.Once
	available bool
}

func NewOCRService(languages string) *OCRService {
	path, _ := exec.LookPath("tesseract")
	if path == "" {
		path = "tesseract"
	}
	if languages == "" {
		languages = "nld+eng"
	}
	return &OCRService{tesseractPath: path, languages: languages}
}

func (o *OCRService) IsAvailable() bool {
	o.once.Do(func() {
		cmd := exec.Command(o.tesseractPath, "--version")
		o.available = cmd.Run() == nil
	})
	return o.available
}

func (o *OCRService) ExtractText(ctx context.Context, image []byte) (string, error) {
	cmd := exec.CommandContext(ctx, o.tesseractPath, "stdin", "stdout", "-l", o.languages)
	cmd.Stdin = bytes.NewReader(image)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(string(output)), nil
}
