// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys from a directory of plain-text files and
// exposes them as environment variables for the conversion engines.
// Each file is one secret: the filename is the key and the trimmed file
// contents are the value.
//
// Keys with an environment mapping: gemini-api-key, openai-api-key, claude-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// envNames maps secret file names to the variables LLM-assisted engines read.
var envNames = map[string]string{
	"gemini-api-key": "GOOGLE_API_KEY",
	"openai-api-key": "OPENAI_API_KEY",
	"claude-api-key": "CLAUDE_API_KEY",
}

// Secrets maps secret file names to their values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory is not an error; Load
// returns an empty set. Unreadable files are logged and skipped.
func Load(dir string) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// Keys returns the loaded secret names, sorted.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Env returns KEY=value pairs for every loaded secret with a known
// environment mapping, sorted by variable name.
func (s Secrets) Env() []string {
	var env []string
	for name, v := range s {
		if key, ok := envNames[name]; ok {
			env = append(env, key+"="+v)
		}
	}
	sort.Strings(env)
	return env
}

// HasLLMKey reports whether any LLM API key is present.
func (s Secrets) HasLLMKey() bool {
	return len(s.Env()) > 0
}
