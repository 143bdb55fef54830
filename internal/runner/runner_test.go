// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package runner

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short string unchanged", in: "abc", max: 8, want: "abc"},
		{name: "exact length unchanged", in: "abcd", max: 4, want: "abcd"},
		{name: "long string cut", in: "abcdef", max: 3, want: "abc...(truncated)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.max))
		})
	}
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "docker", Args: []string{"run", "--rm", "-i", "img"}}
	assert.Equal(t, "docker run --rm -i img", c.String())
	assert.Equal(t, "true", Command{Name: "true"}.String())
}

func TestExecRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	t.Run("pipes stdin to stdout with extra env", func(t *testing.T) {
		var out bytes.Buffer
		err := Exec{}.Run(context.Background(), Command{
			Name:   "sh",
			Args:   []string{"-c", `printf '%s:' "$PDF2MD_TEST"; cat`},
			Env:    []string{"PDF2MD_TEST=yes"},
			Stdin:  strings.NewReader("payload"),
			Stdout: &out,
		})
		require.NoError(t, err)
		assert.Equal(t, "yes:payload", out.String())
	})

	t.Run("failure includes stderr", func(t *testing.T) {
		err := Exec{}.Run(context.Background(), Command{
			Name: "sh",
			Args: []string{"-c", "echo boom >&2; exit 3"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		var exitErr *exec.ExitError
		assert.ErrorAs(t, err, &exitErr)
	})
}
