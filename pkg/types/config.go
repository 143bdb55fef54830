// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// EngineName identifies the external conversion engine.
type EngineName string

const (
	EngineMarker       EngineName = "marker"
	EngineMarkerServer EngineName = "marker-server"
	EngineMarkitdown   EngineName = "markitdown"
	EngineNative       EngineName = "native"
)

// Engines lists every supported engine in the order shown in help text.
var Engines = []EngineName{EngineMarker, EngineMarkerServer, EngineMarkitdown, EngineNative}

// MarkerConfig holds settings for the marker CLI engine.
type MarkerConfig struct {
	// Bin is the marker executable (default "marker_single").
	Bin string `json:"bin" yaml:"bin" mapstructure:"bin"`

	// UseLLM passes --use_llm when an LLM API key is available.
	UseLLM bool `json:"use_llm" yaml:"use_llm" mapstructure:"use_llm"`
}

// ServerConfig holds settings for the marker HTTP server engine.
type ServerConfig struct {
	// URL is the base URL of a running marker server (e.g. "http://localhost:8001").
	URL string `json:"url" yaml:"url" mapstructure:"url"`

	// MaxRetries bounds retries on HTTP 429 (0 uses the default of 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// ContainerConfig holds settings for the container-based markitdown engine.
type ContainerConfig struct {
	// Image is the container image that reads a PDF on stdin and writes Markdown.
	Image string `json:"image" yaml:"image" mapstructure:"image"`
}

// Config groups everything the CLI needs for one conversion.
type Config struct {
	// OutputDir is where <stem>.md and <stem>_images/ are written.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Force permits overwriting an existing Markdown file.
	Force bool `json:"force" yaml:"force" mapstructure:"force"`

	// Engine selects the conversion backend.
	Engine EngineName `json:"engine" yaml:"engine" mapstructure:"engine"`

	// Device is exported as TORCH_DEVICE before the engine is constructed.
	Device string `json:"device" yaml:"device" mapstructure:"device"`

	// Metadata writes <stem>_meta.yaml next to the Markdown file.
	Metadata bool `json:"metadata" yaml:"metadata" mapstructure:"metadata"`

	// Timeout bounds the conversion; zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// SecretsDir holds one file per API key.
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`

	Marker    MarkerConfig    `json:"marker" yaml:"marker" mapstructure:"marker"`
	Server    ServerConfig    `json:"server" yaml:"server" mapstructure:"server"`
	Container ContainerConfig `json:"container" yaml:"container" mapstructure:"container"`
}
