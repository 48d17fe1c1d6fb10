package textextract

import (
	"context"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"

	"github.com/nikhilbhutani/docrag/internal/models"
)

var (
	rtfDestination = regexp.MustCompile(`\{\\\*[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	rtfFontTable   = regexp.MustCompile(`\{\\(?:fonttbl|colortbl|stylesheet|info)[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	rtfHexEscape   = regexp.MustCompile(`\\'([0-9a-fA-F]{2})`)
	rtfUnicode     = regexp.MustCompile(`\\u(-?\d+)\??`)
	rtfBreak       = regexp.MustCompile(`\\(?:par|line|row|page|sect)\b ?`)
	rtfTab         = regexp.MustCompile(`\\tab\b ?`)
	rtfControl     = regexp.MustCompile(`\\[a-zA-Z]+-?\d* ?`)
	rtfSymbol      = regexp.MustCompile(`\\[^a-zA-Z0-9]`)
	blankLines     = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
)

// decodeRTF strips control sequences with a best-effort regex pass. Nested
// groups deeper than two levels and embedded objects lose fidelity.
func decodeRTF(_ context.Context, _ *Extractor, data []byte) (*ExtractedText, error) {
	s := string(data)
	if !strings.HasPrefix(strings.TrimSpace(s), `{\rtf`) {
		return nil, fmt.Errorf("%w: missing rtf header", models.ErrUnsupportedFormat)
	}

	s = rtfFontTable.ReplaceAllString(s, "")
	s = rtfDestination.ReplaceAllString(s, "")
	s = rtfHexEscape.ReplaceAllStringFunc(s, func(m string) string {
		b, err := hex.DecodeString(m[2:])
		if err != nil || len(b) == 0 {
			return ""
		}
		return string(charmap.Windows1252.DecodeByte(b[0]))
	})
	s = rtfUnicode.ReplaceAllStringFunc(s, func(m string) string {
		var n int
		fmt.Sscanf(rtfUnicode.FindStringSubmatch(m)[1], "%d", &n)
		if n < 0 {
			n += 65536
		}
		return string(rune(n))
	})
	s = rtfBreak.ReplaceAllString(s, "\n")
	s = rtfTab.ReplaceAllString(s, "\t")
	s = rtfControl.ReplaceAllString(s, "")
	s = rtfSymbol.ReplaceAllStringFunc(s, func(m string) string {
		switch m {
		case `\{`, `\}`, `\\`:
			return m[1:]
		case `\~`:
			return " "
		}
		return ""
	})
	s = strings.NewReplacer("{", "", "}", "", "\r", "").Replace(s)
	s = blankLines.ReplaceAllString(s, "\n\n")

	return &ExtractedText{Content: strings.TrimSpace(s), Pages: 1}, nil
}

// minRunLength is the shortest printable run kept from a legacy binary.
const minRunLength = 4

// decodeDOC pulls printable runs out of a legacy Word binary. Word 97+
// stores body text either as 8-bit or UTF-16LE, so both are scanned and the
// richer result wins. Quality is explicitly lower than the structured parsers.
func decodeDOC(_ context.Context, _ *Extractor, data []byte) (*ExtractedText, error) {
	narrow := printableRuns8(data)
	wide := printableRuns16(data)

	text := narrow
	if len(wide) > len(narrow) {
		text = wide
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no readable text in legacy document", models.ErrUnsupportedFormat)
	}
	return &ExtractedText{Content: text, Pages: 1, Metadata: map[string]string{"quality": "best-effort"}}, nil
}

func isTextByte(b byte) bool {
	return (b >= 0x20 && b < 0x7f) || b == '\t' || b == '\n' || b == '\r' || b >= 0xa0
}

func printableRuns8(data []byte) string {
	var out, run strings.Builder
	var runLen int
	flush := func() {
		if runLen >= minRunLength {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(strings.TrimSpace(run.String()))
		}
		run.Reset()
		runLen = 0
	}
	for _, b := range data {
		if isTextByte(b) {
			if b >= 0xa0 {
				run.WriteRune(rune(b))
			} else {
				run.WriteByte(b)
			}
			runLen++
			continue
		}
		flush()
	}
	flush()
	return out.String()
}

// isTextRune16 accepts Latin code points only; wider ranges would read
// pairs of ASCII bytes as CJK text.
func isTextRune16(u uint16) bool {
	if u < 0x100 {
		return isTextByte(byte(u))
	}
	return u < 0x250 || u == 0x2013 || u == 0x2014 || u == 0x2018 || u == 0x2019 || u == 0x201c || u == 0x201d
}

func printableRuns16(data []byte) string {
	var out strings.Builder
	var run []uint16
	flush := func() {
		if len(run) >= minRunLength {
			if out.Len() > 0 {
				out.WriteByte('\n')
			}
			out.WriteString(strings.TrimSpace(string(utf16.Decode(run))))
		}
		run = run[:0]
	}
	for i := 0; i+1 < len(data); i += 2 {
		u := uint16(data[i]) | uint16(data[i+1])<<8
		if isTextRune16(u) {
			run = append(run, u)
			continue
		}
		flush()
	}
	flush()
	return out.String()
}
