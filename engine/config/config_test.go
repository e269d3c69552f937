package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTOML(t *testing.T) {
	doc := `
compute_workers = 3
static_index = "rtree"
tight_area_extents = true
profiler_interval = "250ms"
`
	cfg, err := Parse([]byte(doc), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ComputeWorkers)
	assert.Equal(t, IndexRTree, cfg.StaticIndex)
	assert.Equal(t, IndexAABBTree, cfg.DynamicIndex, "unset keys keep defaults")
	assert.True(t, cfg.TightAreaExtents)
	assert.Equal(t, 4096, cfg.MaxVisiblePortals)

	d, err := cfg.Interval()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)
}

func TestParseYAML(t *testing.T) {
	doc := "dynamic_index: rtree\naabb_margin: 0.5\nprofiling: true\n"
	cfg, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, IndexRTree, cfg.DynamicIndex)
	assert.Equal(t, float32(0.5), cfg.AABBMargin)
	assert.True(t, cfg.Profiling)
}

func TestParseEmptyYAMLKeepsDefaults(t *testing.T) {
	cfg, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format Format
	}{
		{"unknown toml key", `wibble = 1`, FormatTOML},
		{"unknown yaml key", "wibble: 1\n", FormatYAML},
		{"bad index kind", `static_index = "octree"`, FormatTOML},
		{"negative workers", "compute_workers: -2\n", FormatYAML},
		{"bad interval", `profiler_interval = "soon"`, FormatTOML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestLoadPicksDecoderByExtension(t *testing.T) {
	dir := t.TempDir()

	tomlPath := filepath.Join(dir, "scene.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("compute_workers = 2\n"), 0o644))
	cfg, err := Load(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.ComputeWorkers)

	ymlPath := filepath.Join(dir, "scene.yml")
	require.NoError(t, os.WriteFile(ymlPath, []byte("compute_workers: 5\n"), 0o644))
	cfg, err = Load(ymlPath)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ComputeWorkers)

	_, err = Load(filepath.Join(dir, "scene.ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Parse(nil, Format("json"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
