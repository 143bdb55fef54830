// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf2md/internal/runner"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// fakeMarker stands in for marker_single: Run writes the files in
// outputs under <output_dir>/<stem>/.
type fakeMarker struct {
	onPath  bool
	outputs map[string]string
	err     error
	got     runner.Command
}

func (f *fakeMarker) LookPath(file string) (string, error) {
	if f.onPath {
		return "/usr/local/bin/" + file, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

func (f *fakeMarker) Run(_ context.Context, c runner.Command) error {
	f.got = c
	if f.err != nil {
		return f.err
	}
	var outDir string
	for i, a := range c.Args {
		if a == "--output_dir" && i+1 < len(c.Args) {
			outDir = c.Args[i+1]
		}
	}
	base := filepath.Base(c.Args[0])
	folder := filepath.Join(outDir, base[:len(base)-len(filepath.Ext(base))])
	for name, content := range f.outputs {
		p := filepath.Join(folder, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestNewMarkerEngine(t *testing.T) {
	t.Run("binary missing", func(t *testing.T) {
		_, err := NewMarkerEngine(types.MarkerConfig{}, &fakeMarker{}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "marker not available")
	})

	t.Run("llm requested without key", func(t *testing.T) {
		m, err := NewMarkerEngine(types.MarkerConfig{UseLLM: true}, &fakeMarker{onPath: true}, nil)
		require.NoError(t, err)
		assert.False(t, m.useLLM)
		assert.Equal(t, defaultMarkerBin, m.bin)
	})

	t.Run("llm with key", func(t *testing.T) {
		m, err := NewMarkerEngine(types.MarkerConfig{Bin: "marker", UseLLM: true}, &fakeMarker{onPath: true}, []string{"GOOGLE_API_KEY=g"})
		require.NoError(t, err)
		assert.True(t, m.useLLM)
		assert.Equal(t, "marker", m.bin)
	})
}

func TestMarkerEngineConvert(t *testing.T) {
	fm := &fakeMarker{
		onPath: true,
		outputs: map[string]string{
			"paper.md":               "# Paper\n\n![](_page_0_Picture_1.jpeg)\n",
			"paper_meta.json":        `{"table_of_contents":[{"title":"Paper","heading_level":1,"page_id":0}],"page_stats":[]}`,
			"_page_0_Picture_1.jpeg": "jpeg-bytes",
			"_page_2_Figure_4.jpeg":  "more-bytes",
		},
	}
	m, err := NewMarkerEngine(types.MarkerConfig{UseLLM: true}, fm, []string{"GOOGLE_API_KEY=g"})
	require.NoError(t, err)

	res, err := m.Convert(context.Background(), "/data/paper.pdf")
	require.NoError(t, err)

	assert.Equal(t, "# Paper\n\n![](_page_0_Picture_1.jpeg)\n", res.Markdown)
	assert.Equal(t, map[string][]byte{
		"_page_0_Picture_1.jpeg": []byte("jpeg-bytes"),
		"_page_2_Figure_4.jpeg":  []byte("more-bytes"),
	}, res.Images)
	assert.Equal(t, 1, res.TOCSections())

	assert.Equal(t, "marker_single", fm.got.Name)
	assert.Equal(t, "/data/paper.pdf", fm.got.Args[0])
	assert.Contains(t, fm.got.Args, "--use_llm")
	assert.Equal(t, []string{"GOOGLE_API_KEY=g"}, fm.got.Env)

	// The scratch directory is removed after conversion.
	outDir := fm.got.Args[4]
	assert.NoDirExists(t, outDir)
}

func TestMarkerEngineConvert_Failures(t *testing.T) {
	tests := []struct {
		name    string
		fm      *fakeMarker
		wantMsg string
	}{
		{
			name:    "marker exits non-zero",
			fm:      &fakeMarker{onPath: true, err: errors.New("exit status 1: CUDA out of memory")},
			wantMsg: "CUDA out of memory",
		},
		{
			name:    "no markdown written",
			fm:      &fakeMarker{onPath: true, outputs: map[string]string{"other.txt": "x"}},
			wantMsg: "marker produced no markdown",
		},
		{
			name: "corrupt metadata",
			fm: &fakeMarker{onPath: true, outputs: map[string]string{
				"doc.md":        "text",
				"doc_meta.json": "{not json",
			}},
			wantMsg: "doc_meta.json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMarkerEngine(types.MarkerConfig{}, tt.fm, nil)
			require.NoError(t, err)
			_, err = m.Convert(context.Background(), "/data/doc.pdf")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.NotContains(t, tt.fm.got.Args, "--use_llm")
		})
	}
}
