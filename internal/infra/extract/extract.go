// Package extract turns uploaded files into the plain text that gets stored and analyzed.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrNoText      = errors.New("no text extracted")
)

type kind int

const (
	kindUnknown kind = iota
	kindText
	kindHTML
	kindPDF
)

// Extractor supports PDF, HTML and plain text files.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) Extract(filename, contentType string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch detect(filename, contentType, data) {
	case kindPDF:
		text, err = fromPDF(data)
	case kindHTML:
		text, err = fromHTML(data)
	case kindText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text file is not valid UTF-8", ErrUnsupported)
		}
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(filename))
	}
	if err != nil {
		return "", err
	}
	text = normalizeText(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// ekstensi menang, content type sebagai fallback, lalu magic bytes PDF
func detect(filename, contentType string, data []byte) kind {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return kindPDF
	case ".html", ".htm", ".xhtml":
		return kindHTML
	case ".txt", ".md", ".text":
		return kindText
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mt == "application/pdf":
			return kindPDF
		case mt == "text/html" || mt == "application/xhtml+xml":
			return kindHTML
		case strings.HasPrefix(mt, "text/"):
			return kindText
		}
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return kindPDF
	}
	return kindUnknown
}

func fromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var buf strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// skip halaman bermasalah, jangan gagal total
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n\n")
	}
	return buf.String(), nil
}

func fromHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head", "noscript":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "br", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "section", "article":
				buf.WriteString("\n")
			}
		}
	}
	walk(doc)
	return buf.String(), nil
}

// normalizeText collapses whitespace inside lines and keeps at most one blank line between paragraphs.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if len(out) > 0 {
				blank = true
			}
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
