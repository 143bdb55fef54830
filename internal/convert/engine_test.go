// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf2md/internal/secrets"
	"github.com/pdiddy/pdf2md/pkg/types"
)

func TestNewEngineFactory(t *testing.T) {
	deps := Deps{
		Runner:  &fakeMarker{onPath: true},
		Secrets: secrets.Secrets{"gemini-api-key": "g"},
	}

	tests := []struct {
		name     string
		cfg      types.Config
		wantType any
		wantErr  string
		buildErr string
	}{
		{name: "default is marker", cfg: types.Config{}, wantType: &MarkerEngine{}},
		{name: "marker", cfg: types.Config{Engine: types.EngineMarker}, wantType: &MarkerEngine{}},
		{name: "native", cfg: types.Config{Engine: types.EngineNative}, wantType: &NativeEngine{}},
		{
			name:     "server without url fails at construction",
			cfg:      types.Config{Engine: types.EngineMarkerServer},
			buildErr: "marker server URL not configured",
		},
		{
			name:     "server",
			cfg:      types.Config{Engine: types.EngineMarkerServer, Server: types.ServerConfig{URL: "http://localhost:8001"}},
			wantType: &ServerEngine{},
		},
		{
			name:     "markitdown",
			cfg:      types.Config{Engine: types.EngineMarkitdown, Device: "cpu"},
			wantType: &MarkitdownEngine{},
		},
		{name: "unknown engine", cfg: types.Config{Engine: "tesseract"}, wantErr: `unknown engine "tesseract"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewEngineFactory(tt.cfg, deps)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			e, err := f(context.Background())
			if tt.buildErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.buildErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, e)
		})
	}
}

func TestNewEngineFactory_MarkerSecrets(t *testing.T) {
	deps := Deps{
		Runner:  &fakeMarker{onPath: true},
		Secrets: secrets.Secrets{"gemini-api-key": "g"},
	}

	f, err := NewEngineFactory(types.Config{Marker: types.MarkerConfig{UseLLM: true}}, deps)
	require.NoError(t, err)
	e, err := f(context.Background())
	require.NoError(t, err)
	m := e.(*MarkerEngine)
	assert.True(t, m.useLLM)
	assert.Equal(t, []string{"GOOGLE_API_KEY=g"}, m.env)

	f, err = NewEngineFactory(types.Config{}, deps)
	require.NoError(t, err)
	e, err = f(context.Background())
	require.NoError(t, err)
	assert.Empty(t, e.(*MarkerEngine).env, "secrets only forwarded when LLM mode is on")
}

func TestNewEngineFactory_NoTools(t *testing.T) {
	deps := Deps{Runner: &fakeMarker{}}

	for _, tt := range []struct {
		engine types.EngineName
		want   string
	}{
		{types.EngineMarker, "marker not available"},
		{types.EngineMarkitdown, "no container runtime available"},
	} {
		f, err := NewEngineFactory(types.Config{Engine: tt.engine}, deps)
		require.NoError(t, err)
		_, err = f(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.want)
	}
}
