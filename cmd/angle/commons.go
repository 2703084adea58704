package main

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/midbel/angle/xml"
)

var ErrDocument = errors.New("bad xml document")

type ParserOptions struct {
	TrimSpace bool
	StrictNS  bool
	OmitEmpty bool
}

type WriterOptions struct {
	NoProlog  bool
	NoComment bool
	Compact   bool
}

type Document struct {
	File string
	*xml.Document
}

func iterDocuments(files []string, options ParserOptions) iter.Seq2[*Document, error] {
	parse := func(file string) (*Document, error) {
		doc, err := parseDocument(file, options)
		if err != nil {
			return &Document{File: file}, fmt.Errorf("%w: %s", ErrDocument, err)
		}
		return &Document{File: file, Document: doc}, nil
	}

	fn := func(yield func(*Document, error) bool) {
		for _, f := range files {
			s, err := os.Stat(f)
			if err != nil || !s.IsDir() {
				if !yield(parse(f)) {
					return
				}
				continue
			}
			es, err := os.ReadDir(f)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, e := range es {
				if e.IsDir() || filepath.Ext(e.Name()) != ".xml" {
					continue
				}
				if !yield(parse(filepath.Join(f, e.Name()))) {
					return
				}
			}
		}
	}
	return fn
}

func parseDocument(file string, options ParserOptions) (*xml.Document, error) {
	r, err := openFile(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	p := xml.NewParser(r)
	p.TrimSpace = options.TrimSpace
	p.StrictNS = options.StrictNS
	p.KeepEmpty = !options.OmitEmpty

	doc, err := p.Parse()
	if err == nil {
		doc.URI = file
	}
	return doc, err
}

func writeDocument(doc *xml.Document, file string, options WriterOptions) error {
	if doc == nil {
		return fmt.Errorf("no document to be written")
	}
	w, err := createOutput(file)
	if err != nil {
		return err
	}
	defer w.Close()

	ws := xml.NewWriter(w)
	if options.NoProlog {
		ws.WriterOptions |= xml.OptionNoProlog
	}
	if options.NoComment {
		ws.WriterOptions |= xml.OptionNoComment
	}
	if options.Compact {
		ws.WriterOptions |= xml.OptionCompact
	}
	return ws.Write(doc)
}

type nopCloser struct {
	io.Writer
}

func (_ nopCloser) Close() error {
	return nil
}

func createOutput(file string) (io.WriteCloser, error) {
	if file == "" || file == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if dir := filepath.Dir(file); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(file)
}

func openFile(file string) (io.ReadCloser, error) {
	if file == "" || file == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	u, err := url.Parse(file)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("accept", "text/xml")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			return nil, fmt.Errorf("%s: fail to retrieve remote file (%s)", file, res.Status)
		}
		return res.Body, nil
	default:
		return os.Open(file)
	}
}

// splitParam splits a name=value pair given on the command line.
func splitParam(str string) (string, string, error) {
	name, value, ok := strings.Cut(str, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("%s: parameter should be given as name=value", str)
	}
	return name, value, nil
}
