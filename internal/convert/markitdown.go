// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/pdf2md/internal/container"
	"github.com/pdiddy/pdf2md/pkg/types"
)

const defaultMarkitdownImage = "markitdown:latest"

// MarkitdownEngine converts PDFs by piping them through the markitdown
// container image. It produces Markdown only; no images or metadata.
type MarkitdownEngine struct {
	runtime container.Runtime
	image   string
	env     []string
}

// NewMarkitdownEngine verifies that image exists locally in rt before
// returning. An empty image selects markitdown:latest.
func NewMarkitdownEngine(ctx context.Context, rt container.Runtime, image string, env []string) (*MarkitdownEngine, error) {
	if image == "" {
		image = defaultMarkitdownImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownEngine{runtime: rt, image: image, env: env}, nil
}

// Convert pipes the PDF at pdfPath through the container and returns the
// Markdown it prints.
func (m *MarkitdownEngine) Convert(ctx context.Context, pdfPath string) (*types.Result, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, m.image, m.env, f, &out); err != nil {
		return nil, fmt.Errorf("converting %s with markitdown: %w", pdfPath, err)
	}

	if out.Len() == 0 {
		return nil, fmt.Errorf("markitdown produced empty output for %s", pdfPath)
	}

	return &types.Result{Markdown: out.String()}, nil
}
