package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrNoText = errors.New("no text could be extracted from report")

// IsTextReport reports whether a stored file carries a text layer that is
// sent to the model as text instead of as an image.
func IsTextReport(mimeType string) bool {
	return mimeType == "application/pdf" || mimeType == DOCXMime || strings.HasPrefix(mimeType, "text/plain")
}

// ReportText returns the text layer of a PDF, DOCX or plain-text report.
func ReportText(filename, mimeType string, data []byte) (string, error) {
	switch {
	case mimeType == "application/pdf" || strings.EqualFold(filepath.Ext(filename), ".pdf"):
		return ExtractPDF(data)
	case mimeType == DOCXMime || strings.EqualFold(filepath.Ext(filename), ".docx"):
		return ExtractDOCX(data)
	case strings.HasPrefix(mimeType, "text/plain") || strings.EqualFold(filepath.Ext(filename), ".txt"):
		return ExtractTXT(data)
	}
	return "", fmt.Errorf("unsupported report type %q", mimeType)
}

func ExtractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func ExtractTXT(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoText
	}

	text, err := decode(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode text report: %w", err)
	}

	text = normalizeLines(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// decode honours a BOM, then falls back to GB18030 (common for exported
// Chinese lab reports) and finally Windows-1252.
func decode(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), data)
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.UseBOM), data)
	case utf8.Valid(data):
		return string(data), nil
	}

	if s, err := decodeWith(simplifiedchinese.GB18030, data); err == nil && utf8.ValidString(s) {
		return s, nil
	}
	return decodeWith(charmap.Windows1252, data)
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func normalizeLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
