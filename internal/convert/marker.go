// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/pdf2md/internal/runner"
	"github.com/pdiddy/pdf2md/pkg/types"
)

const (
	defaultMarkerBin = "marker_single"
	markerMetaSuffix = "_meta.json"
)

// MarkerEngine runs the marker CLI, which loads its layout and OCR models
// on every invocation, and reads back the folder it writes:
//
//	<out>/<stem>/<stem>.md
//	<out>/<stem>/<stem>_meta.json
//	<out>/<stem>/<image files>
type MarkerEngine struct {
	bin    string
	run    runner.Runner
	env    []string
	useLLM bool
}

// NewMarkerEngine checks that the marker binary is on PATH. env is appended
// to the subprocess environment; --use_llm is passed only when cfg.UseLLM
// is set and env carries at least one key.
func NewMarkerEngine(cfg types.MarkerConfig, run runner.Runner, env []string) (*MarkerEngine, error) {
	bin := cfg.Bin
	if bin == "" {
		bin = defaultMarkerBin
	}
	if _, err := run.LookPath(bin); err != nil {
		return nil, fmt.Errorf("marker not available (install marker-pdf or set marker.bin): %w", err)
	}
	useLLM := cfg.UseLLM && len(env) > 0
	if cfg.UseLLM && !useLLM {
		slog.Warn("marker.use_llm set but no LLM API key found; converting without LLM")
	}
	return &MarkerEngine{bin: bin, run: run, env: env, useLLM: useLLM}, nil
}

// Convert runs marker on pdfPath in a scratch directory and collects the
// Markdown, images and metadata it writes.
func (m *MarkerEngine) Convert(ctx context.Context, pdfPath string) (*types.Result, error) {
	tmp, err := os.MkdirTemp("", "pdf2md-marker-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			slog.Warn("failed to remove scratch directory", "path", tmp, "error", err)
		}
	}()

	args := []string{pdfPath, "--output_format", "markdown", "--output_dir", tmp}
	if m.useLLM {
		args = append(args, "--use_llm")
	}

	c := runner.Command{Name: m.bin, Args: args, Env: m.env, Stdout: io.Discard}
	if err := m.run.Run(ctx, c); err != nil {
		return nil, fmt.Errorf("converting %s with marker: %w", pdfPath, err)
	}

	base := filepath.Base(pdfPath)
	return readMarkerOutput(tmp, strings.TrimSuffix(base, filepath.Ext(base)))
}

// readMarkerOutput loads the <stem> folder marker wrote under dir.
func readMarkerOutput(dir, stem string) (*types.Result, error) {
	folder := filepath.Join(dir, stem)
	md, err := os.ReadFile(filepath.Join(folder, stem+markdownExt))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("marker produced no markdown for %s", stem)
		}
		return nil, fmt.Errorf("reading marker output: %w", err)
	}

	res := &types.Result{Markdown: string(md)}

	err = filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return err
		}
		switch rel {
		case stem + markdownExt:
			return nil
		case stem + markerMetaSuffix:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &res.Metadata); err != nil {
				return fmt.Errorf("parsing %s: %w", rel, err)
			}
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if res.Images == nil {
			res.Images = make(map[string][]byte)
		}
		res.Images[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading marker output: %w", err)
	}
	return res, nil
}
