// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns one PDF into a Markdown file plus extracted images
// by delegating the conversion itself to a pluggable Engine.
//
// The flow is linear: ValidateInput, PrepareOutput, construct the engine,
// Engine.Convert, Persist, report. Input and output checks run before the
// engine is constructed because engine construction loads models.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf2md/pkg/types"
)

const (
	pdfExt      = ".pdf"
	markdownExt = ".md"
	imagesDir   = "_images"
	metaFile    = "_meta.yaml"
)

var (
	// ErrInputNotFound is returned when the input path does not exist.
	ErrInputNotFound = errors.New("input file does not exist")
	// ErrNotPDF is returned when the input does not have a .pdf extension.
	ErrNotPDF = errors.New("input file is not a PDF")
	// ErrOutputExists is returned when the Markdown output exists and force is off.
	ErrOutputExists = errors.New("output file already exists")
)

// ConversionError wraps any failure from constructing or running the engine.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string { return e.Err.Error() }
func (e *ConversionError) Unwrap() error { return e.Err }

// PersistError wraps a failure writing results to disk. Files written
// before the failure are left in place.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string { return fmt.Sprintf("writing %s: %v", e.Path, e.Err) }
func (e *PersistError) Unwrap() error { return e.Err }

// Engine converts a PDF into Markdown, images and metadata. Implementations
// wrap an external conversion tool.
type Engine interface {
	Convert(ctx context.Context, pdfPath string) (*types.Result, error)
}

// EngineFactory constructs an Engine. Construction may be expensive (model
// loading), so it is deferred until all cheap checks have passed.
type EngineFactory func(ctx context.Context) (Engine, error)

// Paths are the filesystem locations derived from a Request.
type Paths struct {
	Markdown string
	Images   string
	Meta     string
}

// OutputPaths computes <dir>/<stem>.md, <dir>/<stem>_images and
// <dir>/<stem>_meta.yaml for the request.
func OutputPaths(req types.Request) Paths {
	base := filepath.Base(req.InputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return Paths{
		Markdown: filepath.Join(req.OutputDir, stem+markdownExt),
		Images:   filepath.Join(req.OutputDir, stem+imagesDir),
		Meta:     filepath.Join(req.OutputDir, stem+metaFile),
	}
}

// ValidateInput checks that path exists and has a .pdf extension
// (case-insensitive). It does not inspect the file contents.
func ValidateInput(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return fmt.Errorf("checking input %s: %w", path, err)
	}
	if !strings.EqualFold(filepath.Ext(path), pdfExt) {
		return fmt.Errorf("%w: %s", ErrNotPDF, path)
	}
	return nil
}

// PrepareOutput creates the output directory and returns the output paths.
// It returns ErrOutputExists when the Markdown file is already present and
// req.Force is false.
func PrepareOutput(req types.Request) (Paths, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating output directory %s: %w", req.OutputDir, err)
	}

	p := OutputPaths(req)
	if _, err := os.Stat(p.Markdown); err == nil && !req.Force {
		return p, fmt.Errorf("%w: %s", ErrOutputExists, p.Markdown)
	}
	return p, nil
}

// Summary describes a completed conversion.
type Summary struct {
	MarkdownPath string
	ImageDir     string
	Images       int
	MetaPath     string
	Chars        int
	Lines        int
	TOCSections  int
}

// Converter runs the conversion flow and writes progress to Out.
type Converter struct {
	NewEngine EngineFactory

	// Device is only used for the progress note; the environment override
	// happens before the engine is constructed.
	Device string

	// Metadata writes <stem>_meta.yaml when the result carries metadata.
	Metadata bool

	Out io.Writer
}

// Convert validates the request, converts the PDF and persists the result.
// Errors are ErrInputNotFound, ErrNotPDF, ErrOutputExists (all wrapped),
// *ConversionError or *PersistError.
func (c *Converter) Convert(ctx context.Context, req types.Request) (*Summary, error) {
	if err := ValidateInput(req.InputPath); err != nil {
		return nil, err
	}

	paths, err := PrepareOutput(req)
	if err != nil {
		return nil, err
	}

	w := c.Out
	if w == nil {
		w = io.Discard
	}

	fmt.Fprintf(w, "Converting PDF: %s\n", req.InputPath)
	fmt.Fprintf(w, "Output directory: %s\n", req.OutputDir)
	if c.Device == "" || strings.EqualFold(c.Device, "cpu") {
		fmt.Fprintln(w, "Note: Using CPU device (forced for compatibility)")
	} else {
		fmt.Fprintf(w, "Note: Using %s device\n", c.Device)
	}
	fmt.Fprintln(w, "Loading models...")

	engine, err := c.NewEngine(ctx)
	if err != nil {
		return nil, &ConversionError{Err: err}
	}

	fmt.Fprintf(w, "Converting %s...\n", filepath.Base(req.InputPath))
	res, err := engine.Convert(ctx, req.InputPath)
	if err != nil {
		return nil, &ConversionError{Err: err}
	}
	if res == nil {
		return nil, &ConversionError{Err: errors.New("engine returned no result")}
	}

	sum, err := Persist(res, paths, c.Metadata)
	if err != nil {
		return nil, err
	}

	Report(w, sum)
	return sum, nil
}

// Persist writes the Markdown text verbatim, then every image under
// paths.Images, then the optional metadata sidecar. The Markdown file is
// overwritten unconditionally; existence was checked by PrepareOutput.
func Persist(res *types.Result, paths Paths, writeMeta bool) (*Summary, error) {
	if err := os.WriteFile(paths.Markdown, []byte(res.Markdown), 0o644); err != nil {
		return nil, &PersistError{Path: paths.Markdown, Err: err}
	}

	sum := &Summary{
		MarkdownPath: paths.Markdown,
		Chars:        utf8.RuneCountInString(res.Markdown),
		Lines:        CountLines(res.Markdown),
		TOCSections:  res.TOCSections(),
	}

	if len(res.Images) > 0 {
		if err := os.MkdirAll(paths.Images, 0o755); err != nil {
			return nil, &PersistError{Path: paths.Images, Err: err}
		}
		names := make([]string, 0, len(res.Images))
		for name := range res.Images {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if !filepath.IsLocal(name) {
				return nil, &PersistError{Path: name, Err: errors.New("image name escapes the image directory")}
			}
			imgPath := filepath.Join(paths.Images, name)
			if dir := filepath.Dir(imgPath); dir != paths.Images {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, &PersistError{Path: dir, Err: err}
				}
			}
			if err := os.WriteFile(imgPath, res.Images[name], 0o644); err != nil {
				return nil, &PersistError{Path: imgPath, Err: err}
			}
		}
		sum.ImageDir = paths.Images
		sum.Images = len(names)
	}

	if writeMeta && len(res.Metadata) > 0 {
		data, err := yaml.Marshal(res.Metadata)
		if err != nil {
			return nil, &PersistError{Path: paths.Meta, Err: err}
		}
		if err := os.WriteFile(paths.Meta, data, 0o644); err != nil {
			return nil, &PersistError{Path: paths.Meta, Err: err}
		}
		sum.MetaPath = paths.Meta
	}

	return sum, nil
}

// Report prints the human-readable conversion summary.
func Report(w io.Writer, s *Summary) {
	if s.Images > 0 {
		fmt.Fprintf(w, "   Images saved: %d files to %s\n", s.Images, s.ImageDir)
	}
	if s.MetaPath != "" {
		fmt.Fprintf(w, "   Metadata saved: %s\n", s.MetaPath)
	}
	fmt.Fprintf(w, "Successfully converted to: %s\n", s.MarkdownPath)
	fmt.Fprintf(w, "   Output size: %d characters\n", s.Chars)
	fmt.Fprintf(w, "   Lines: %d\n", s.Lines)
	if s.TOCSections > 0 {
		fmt.Fprintf(w, "   Table of contents: %d sections\n", s.TOCSections)
	}
}

// CountLines counts lines the way a reader splitting on line boundaries
// would: "\r\n" is one break, and a trailing break does not start a new line.
func CountLines(s string) int {
	n := 0
	pending := false
	for i, r := range s {
		if isLineBreak(r) {
			if r == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				continue
			}
			n++
			pending = false
			continue
		}
		pending = true
	}
	if pending {
		n++
	}
	return n
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}
