package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const DOCXMime = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// ExtractDOCX returns the text of word/document.xml. Paragraphs end a line
// and table cells are tab separated, so a result table keeps its rows.
func ExtractDOCX(data []byte) (string, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read DOCX as ZIP: %w", err)
	}

	// Find document.xml
	var documentFile *zip.File
	for _, file := range zipReader.File {
		if file.Name == "word/document.xml" {
			documentFile = file
			break
		}
	}
	if documentFile == nil {
		return "", errors.New("document.xml not found in DOCX")
	}

	xmlFile, err := documentFile.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer xmlFile.Close()

	text, err := docxText(xmlFile)
	if err != nil {
		return "", fmt.Errorf("failed to parse document.xml: %w", err)
	}

	text = normalizeLines(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false
	var cells []int

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tc":
				cells = append(cells, sb.Len())
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			case "tc":
				if len(cells) == 0 {
					continue
				}
				cellStart := cells[len(cells)-1]
				cells = cells[:len(cells)-1]

				// cells of a row share one line
				s := sb.String()
				cell := strings.ReplaceAll(strings.TrimRight(s[cellStart:], "\n"), "\n", " ")
				sb.Reset()
				sb.WriteString(s[:cellStart])
				sb.WriteString(cell)
				sb.WriteString("\t")
			case "tr":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}
