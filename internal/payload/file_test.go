package payload_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/mirror/internal/payload"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "json",
			file:    "run.json",
			content: "  {\"run\":{\"run_id\":\"R1\",\"project\":\"acme/app\"}}\n",
			want:    `{"run":{"run_id":"R1","project":"acme/app"}}`,
		},
		{
			name:    "yaml",
			file:    "run.yaml",
			content: "run:\n  run_id: R1\n  project: acme/app\ncoverage:\n  requirement: 0.9\ndecisions:\n  - oracle: o1\n    result: pass\n",
			want:    `{"run":{"run_id":"R1","project":"acme/app"},"coverage":{"requirement":0.9},"decisions":[{"oracle":"o1","result":"pass"}]}`,
		},
		{
			name:    "unknown extension falls back to yaml",
			file:    "run.txt",
			content: "run:\n  run_id: R2\n",
			want:    `{"run":{"run_id":"R2"}}`,
		},
		{
			name:    "invalid json",
			file:    "bad.json",
			content: "{nope",
			wantErr: true,
		},
		{
			name:    "empty yaml",
			file:    "empty.yml",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			writeFile(t, path, tt.content)

			got, err := payload.LoadFile(path)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := payload.LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestDecodeYAML(t *testing.T) {
	var specs []struct {
		ID         string  `yaml:"id"`
		RiskWeight float64 `yaml:"risk_weight"`
	}
	err := payload.DecodeYAML(strings.NewReader("- id: REQ-1\n  risk_weight: 2\n- id: REQ-2\n"), &specs)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "REQ-1", specs[0].ID)
	assert.InDelta(t, 2.0, specs[0].RiskWeight, 1e-9)
}
