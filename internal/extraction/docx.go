package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Docx extracts paragraph text from OOXML word documents.
type Docx struct{}

func (Docx) MIMETypes() []string { return []string{MIMEDocx} }

func (Docx) Extract(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Document{}, fmt.Errorf("%w: not a zip archive: %v", ErrCorruptDocument, err)
	}

	body, err := readZipEntry(reader, "word/document.xml")
	if err != nil {
		return Document{}, err
	}
	if body == nil {
		return Document{}, fmt.Errorf("%w: word/document.xml missing", ErrCorruptDocument)
	}
	text, err := parseDocumentXML(body)
	if err != nil {
		return Document{}, err
	}

	doc := Document{Text: text}
	if core, _ := readZipEntry(reader, "docProps/core.xml"); core != nil {
		var props struct {
			Title string `xml:"title"`
		}
		if xml.Unmarshal(core, &props) == nil {
			doc.Title = strings.TrimSpace(props.Title)
		}
	}
	return doc, nil
}

func looksLikeDocx(data []byte) bool {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			return true
		}
	}
	return false
}

func readZipEntry(reader *zip.Reader, name string) ([]byte, error) {
	for _, f := range reader.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: opening %s: %v", ErrCorruptDocument, name, err)
		}
		defer rc.Close()
		content, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrCorruptDocument, name, err)
		}
		return content, nil
	}
	return nil, nil
}

// parseDocumentXML walks the token stream so text in tables, text boxes and
// nested runs is kept. Paragraphs become lines; tabs and breaks are kept.
func parseDocumentXML(content []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	var (
		out    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parsing document.xml: %v", ErrCorruptDocument, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				out.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}
	return strings.TrimSpace(out.String()), nil
}
