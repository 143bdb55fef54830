// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/pdiddy/pdf2md/pkg/types"
)

const mimePDF = "application/pdf"

// NativeEngine converts in-process without any models: page text via
// ledongthuc/pdf, the document outline as the table of contents, and
// embedded images via pdfcpu. Layout and OCR are not attempted.
type NativeEngine struct {
	conf *model.Configuration
}

// NewNativeEngine returns an engine with a relaxed pdfcpu configuration that
// never touches the user's pdfcpu config directory.
func NewNativeEngine() *NativeEngine {
	api.DisableConfigDir()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &NativeEngine{conf: conf}
}

// Convert extracts text, outline and images from pdfPath.
func (n *NativeEngine) Convert(ctx context.Context, pdfPath string) (*types.Result, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}
	if mt := mimetype.Detect(data); !mt.Is(mimePDF) {
		return nil, fmt.Errorf("%s is not a PDF document (detected %s)", pdfPath, mt.String())
	}

	md, toc, err := extractText(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", pdfPath, err)
	}

	res := &types.Result{Markdown: md}
	if len(toc) > 0 {
		res.Metadata = map[string]any{types.MetadataTOC: toc}
	}

	images, err := n.extractImages(data)
	if err != nil {
		slog.Warn("image extraction failed; continuing with text only", "path", pdfPath, "error", err)
	} else if len(images) > 0 {
		res.Images = images
	}
	return res, nil
}

// extractText walks every page and joins the non-empty page texts with a
// blank line. ledongthuc/pdf panics on some malformed files, so panics are
// turned into errors.
func extractText(ctx context.Context, data []byte) (md string, toc []types.TOCEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("open PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", nil, fmt.Errorf("page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}

	return b.String(), flattenOutline(r.Outline().Child, 1), nil
}

// flattenOutline turns the nested outline into heading-level entries in
// document order.
func flattenOutline(items []pdf.Outline, level int) []types.TOCEntry {
	var out []types.TOCEntry
	for _, o := range items {
		if title := strings.TrimSpace(o.Title); title != "" {
			out = append(out, types.TOCEntry{Title: title, HeadingLevel: level})
		}
		out = append(out, flattenOutline(o.Child, level+1)...)
	}
	return out
}

func (n *NativeEngine) extractImages(data []byte) (map[string][]byte, error) {
	images := make(map[string][]byte)
	digest := func(img model.Image, _ bool, _ int) error {
		b, err := io.ReadAll(img)
		if err != nil {
			return fmt.Errorf("reading image %s on page %d: %w", img.Name, img.PageNr, err)
		}
		images[imageName(img.PageNr, img.ObjNr, img.FileType)] = b
		return nil
	}
	if err := api.ExtractImages(bytes.NewReader(data), nil, digest, n.conf); err != nil {
		return nil, err
	}
	return images, nil
}

// imageName names an extracted image page<page>_<obj>.<ext>.
func imageName(page, obj int, fileType string) string {
	ext := strings.TrimPrefix(strings.ToLower(fileType), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("page%d_%d.%s", page, obj, ext)
}
