// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pdiddy/pdf2md/internal/container"
	"github.com/pdiddy/pdf2md/internal/runner"
	"github.com/pdiddy/pdf2md/internal/secrets"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// Deps are the collaborators engines are built from. Zero values fall back
// to production defaults.
type Deps struct {
	Runner     runner.Runner
	HTTPClient *http.Client
	Secrets    secrets.Secrets
}

// NewEngineFactory returns a factory for the engine named in cfg. It fails
// immediately for an unknown engine name; engine construction itself is
// deferred to the factory call.
func NewEngineFactory(cfg types.Config, deps Deps) (EngineFactory, error) {
	run := deps.Runner
	if run == nil {
		run = runner.Default
	}
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	switch cfg.Engine {
	case types.EngineMarker, "":
		return func(context.Context) (Engine, error) {
			var env []string
			if cfg.Marker.UseLLM {
				env = deps.Secrets.Env()
			}
			e, err := NewMarkerEngine(cfg.Marker, run, env)
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	case types.EngineMarkerServer:
		return func(context.Context) (Engine, error) {
			e, err := NewServerEngine(cfg.Server, client)
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	case types.EngineMarkitdown:
		return func(ctx context.Context) (Engine, error) {
			rt, err := container.DetectRuntime(ctx, run)
			if err != nil {
				return nil, err
			}
			var env []string
			if cfg.Device != "" {
				env = []string{"TORCH_DEVICE=" + cfg.Device}
			}
			e, err := NewMarkitdownEngine(ctx, rt, cfg.Container.Image, env)
			if err != nil {
				return nil, err
			}
			return e, nil
		}, nil
	case types.EngineNative:
		return func(context.Context) (Engine, error) {
			return NewNativeEngine(), nil
		}, nil
	}
	return nil, fmt.Errorf("unknown engine %q: use one of %v", cfg.Engine, types.Engines)
}
