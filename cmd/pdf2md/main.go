// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdf2md CLI, which converts one PDF
// into Markdown plus extracted images using an external conversion engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf2md/internal/convert"
	"github.com/pdiddy/pdf2md/internal/secrets"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// deps are the engine collaborators; tests replace the runner.
var deps convert.Deps

const (
	defaultOutputDir  = "documents/markdown"
	defaultDevice     = "cpu"
	defaultSecretsDir = ".secrets"
	envDevice         = "TORCH_DEVICE"
)

// errReported marks an error whose message has already been printed.
var errReported = errors.New("reported")

// flagKeys maps viper config keys to the flags that override them.
var flagKeys = map[string]string{
	"output_dir":      "output-dir",
	"force":           "force",
	"engine":          "engine",
	"device":          "device",
	"metadata":        "metadata",
	"timeout":         "timeout",
	"secrets_dir":     "secrets-dir",
	"marker.bin":      "marker-bin",
	"marker.use_llm":  "use-llm",
	"server.url":      "server-url",
	"container.image": "image",
}

func newRootCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf2md <input.pdf>",
		Short: "Convert a PDF into Markdown and extracted images",
		Long: `pdf2md converts a single PDF into <output-dir>/<name>.md and writes any
extracted images to <output-dir>/<name>_images/. The conversion itself is
done by an external engine: the marker CLI (default), a marker server, the
markitdown container, or a lightweight native text extractor.

An existing Markdown file is never overwritten unless --force is given.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(stderr, verbose)

			cfgFile, _ := cmd.Flags().GetString("config")
			return initConfig(v, cfgFile, stderr)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), v, args[0], stdout)
		},
	}

	f := cmd.Flags()
	f.StringP("output-dir", "o", defaultOutputDir, "output directory for Markdown files")
	f.BoolP("force", "f", false, "overwrite existing output files")
	f.String("engine", string(types.EngineMarker), fmt.Sprintf("conversion engine: %s", engineList()))
	f.String("device", defaultDevice, "compute device exported as "+envDevice+" for the engine")
	f.Bool("metadata", false, "write <name>_meta.yaml with engine metadata")
	f.Duration("timeout", 0, "abort the conversion after this long (0 = no limit)")
	f.String("secrets-dir", defaultSecretsDir, "directory of API key files for LLM-assisted conversion")
	f.String("marker-bin", "marker_single", "marker executable")
	f.Bool("use-llm", false, "let marker use an LLM (needs an API key in the secrets directory)")
	f.String("server-url", "", "base URL of a marker server (engine marker-server)")
	f.String("image", "markitdown:latest", "container image (engine markitdown)")

	cmd.PersistentFlags().String("config", "", "config file (default: ./pdf2md.yaml or ~/.config/pdf2md/pdf2md.yaml)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	for key, flag := range flagKeys {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	v.SetDefault("server.max_retries", 0)

	cmd.AddCommand(newVersionCmd(stdout))
	return cmd
}

func engineList() string {
	names := make([]string, len(types.Engines))
	for i, e := range types.Engines {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

func initConfig(v *viper.Viper, cfgFile string, stderr io.Writer) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pdf2md")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pdf2md"))
		}
	}

	v.SetEnvPrefix("PDF2MD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
		return nil
	}
	fmt.Fprintln(stderr, "Using config file:", v.ConfigFileUsed())
	return nil
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)
}

func loadConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func runConvert(ctx context.Context, v *viper.Viper, input string, stdout io.Writer) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	// The engine and anything it spawns must see the device override
	// before it loads models.
	if cfg.Device != "" {
		if err := os.Setenv(envDevice, cfg.Device); err != nil {
			return fmt.Errorf("setting %s: %w", envDevice, err)
		}
	}

	d := deps
	if cfg.Marker.UseLLM {
		s, err := secrets.Load(cfg.SecretsDir)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			slog.Debug("loaded secrets", "keys", s.Keys())
		}
		d.Secrets = s
	}

	factory, err := convert.NewEngineFactory(cfg, d)
	if err != nil {
		return err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	req := types.Request{InputPath: input, OutputDir: cfg.OutputDir, Force: cfg.Force}
	slog.Debug("converting", "input", req.InputPath, "output_dir", req.OutputDir, "force", req.Force, "engine", cfg.Engine)

	c := &convert.Converter{
		NewEngine: factory,
		Device:    cfg.Device,
		Metadata:  cfg.Metadata,
		Out:       stdout,
	}
	if _, err := c.Convert(ctx, req); err != nil {
		if errors.Is(err, convert.ErrOutputExists) {
			fmt.Fprintf(stdout, "Output file already exists: %s\n", convert.OutputPaths(req).Markdown)
			fmt.Fprintln(stdout, "Use --force to overwrite")
			return errReported
		}
		return err
	}
	return nil
}

// reportError prints err in the form matching its kind.
func reportError(stderr io.Writer, err error) {
	var convErr *convert.ConversionError
	switch {
	case errors.Is(err, errReported):
	case errors.As(err, &convErr):
		fmt.Fprintf(stderr, "Error during conversion: %v\n", convErr.Err)
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(viper.New(), stdout, stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
