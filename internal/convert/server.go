// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/pdf2md/internal/httputil"
	"github.com/pdiddy/pdf2md/internal/runner"
	"github.com/pdiddy/pdf2md/pkg/types"
)

const uploadPath = "/marker/upload"

// ServerEngine uploads the PDF to a running marker server, which keeps its
// models loaded between requests.
type ServerEngine struct {
	endpoint   string
	client     *http.Client
	maxRetries int
}

// serverResponse is the JSON body returned by the marker server.
type serverResponse struct {
	Format   string            `json:"format"`
	Output   string            `json:"output"`
	Images   map[string]string `json:"images"`
	Metadata map[string]any    `json:"metadata"`
	Success  bool              `json:"success"`
	Error    string            `json:"error"`
}

// NewServerEngine validates the configured server URL.
func NewServerEngine(cfg types.ServerConfig, client *http.Client) (*ServerEngine, error) {
	if cfg.URL == "" {
		return nil, errors.New("marker server URL not configured (set server.url or PDF2MD_SERVER_URL)")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid marker server URL %q", cfg.URL)
	}
	return &ServerEngine{
		endpoint:   strings.TrimSuffix(cfg.URL, "/") + uploadPath,
		client:     client,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Convert uploads pdfPath and decodes the server's Markdown, base64 images
// and metadata.
func (s *ServerEngine) Convert(ctx context.Context, pdfPath string) (*types.Result, error) {
	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}

	newReq := func(ctx context.Context) (*http.Request, error) {
		body, contentType, err := uploadBody(filepath.Base(pdfPath), pdf)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := httputil.DoWithRetry(ctx, s.client, newReq, s.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("posting %s to marker server: %w", pdfPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("marker server returned %s: %s", resp.Status, runner.Truncate(strings.TrimSpace(string(msg)), 512))
	}

	var sr serverResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decoding marker server response: %w", err)
	}
	if !sr.Success {
		if sr.Error == "" {
			sr.Error = "unknown error"
		}
		return nil, fmt.Errorf("marker server failed to convert %s: %s", pdfPath, sr.Error)
	}

	res := &types.Result{Markdown: sr.Output, Metadata: sr.Metadata}
	if len(sr.Images) > 0 {
		res.Images = make(map[string][]byte, len(sr.Images))
		for name, enc := range sr.Images {
			data, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return nil, fmt.Errorf("decoding image %s: %w", name, err)
			}
			res.Images[name] = data
		}
	}
	return res, nil
}

// uploadBody builds the multipart form the marker server expects.
func uploadBody(filename string, pdf []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("output_format", "markdown"); err != nil {
		return nil, "", err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(pdf); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
