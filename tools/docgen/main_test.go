package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/price-monitor/cmd/pmon/cmd"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		format string
		file   string
		want   string
	}{
		{format: "markdown", file: "pmon_subscribe.md", want: "pmon subscribe"},
		{format: "man", file: "pmon-subscribe.1", want: "PMON"},
		{format: "yaml", file: "pmon_subscribe.yaml", want: "name: pmon subscribe"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			dir := t.TempDir()

			n, err := generate(cmd.Root(), tt.format, dir)
			require.NoError(t, err)
			assert.Positive(t, n)

			data, err := os.ReadFile(filepath.Join(dir, tt.file))
			require.NoError(t, err)
			assert.Contains(t, string(data), tt.want)
		})
	}
}

func TestGenerate_UnknownFormat(t *testing.T) {
	_, err := generate(cmd.Root(), "html", t.TempDir())
	assert.ErrorContains(t, err, "unknown format")
}
