package rag

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// Document is one loaded page of a source file. Page is 1-based for PDFs
// and 0 for single-page formats.
type Document struct {
	Source string
	Page   int
	Text   string
}

var loaders = map[string]func(path string) ([]Document, error){
	".pdf":      loadPDF,
	".html":     loadHTML,
	".htm":      loadHTML,
	".md":       loadText,
	".markdown": loadText,
	".txt":      loadText,
}

// Supported reports whether path has a loadable extension.
func Supported(path string) bool {
	_, ok := loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadFile reads a PDF, HTML, markdown or text file.
func LoadFile(path string) ([]Document, error) {
	load, ok := loaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("load %s: unsupported file type", path)
	}
	docs, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return docs, nil
}

// LoadPath loads a single file, or every supported file under a directory
// in lexical order.
func LoadPath(path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if !info.IsDir() {
		return LoadFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && Supported(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", path, err)
	}
	sort.Strings(files)

	var docs []Document
	for _, f := range files {
		d, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d...)
	}
	return docs, nil
}

func loadPDF(path string) ([]Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	source := filepath.Base(path)
	var docs []Document
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{Source: source, Page: i, Text: text})
	}
	return docs, nil
}

func loadHTML(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := HTMLToMarkdown(string(data))
	if err != nil {
		return nil, err
	}
	return []Document{{Source: filepath.Base(path), Text: text}}, nil
}

// HTMLToMarkdown keeps the page body, drops scripts, styles and navigation,
// and converts the rest to markdown.
func HTMLToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, nav, header, footer, noscript").Remove()
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("extract body: %w", err)
	}
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(body)
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

func loadText(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []Document{{Source: filepath.Base(path), Text: string(data)}}, nil
}
