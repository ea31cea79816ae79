package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "check.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigValidatesWithPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dataset.Path = "./data"
	require.NoError(t, cfg.Validate())
}

func TestDefaultConfigRequiresPath(t *testing.T) {
	err := DefaultConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset.path")
}

func TestLoadKeepsDefaultsForAbsentKeys(t *testing.T) {
	path := writeConfig(t, `
dataset:
  path: ./data
checks:
  validity: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Checks.Validity)
	assert.True(t, cfg.Checks.Spikes, "untouched checks keep their default")
	assert.Equal(t, "grid", cfg.Index.Strategy)
	assert.Equal(t, []string{"*"}, cfg.Dataset.Tables)
	assert.InDelta(t, 10.0, cfg.Thresholds.SpikeMaxAngleDeg, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
dataset:
  path: /srv/cadastre
  tables: ["parcel*", "road*"]
  exclude: ["*_backup"]
index:
  strategy: rtree
thresholds:
  min_line_length: 0.5
  dangle_search_distance: 2.5
relations:
  - left: parcels
    right: parcels
    duplicates: true
    overlaps: true
    tolerance: 0.01
attributes:
  - table: parcels
    field: zone
    references:
      table: zones
      field: id
schema:
  - table: parcels
    fields:
      - name: zone
        type: string
      - name: notes
        type: string
        optional: true
runtime:
  min_workers: 2
  max_workers: 6
  sample_interval: 500ms
output:
  format: shapefile
  path: findings.zip
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/srv/cadastre", cfg.Dataset.Path)
	assert.Equal(t, "rtree", string(cfg.Strategy()))
	assert.InDelta(t, 0.5, cfg.Params().MinLineLength, 1e-9)
	assert.InDelta(t, 2.5, cfg.Params().DangleSearchDistance, 1e-9)
	require.Len(t, cfg.Relations, 1)
	assert.Equal(t, "parcels", cfg.Relations[0].Left)
	require.Len(t, cfg.Schema, 1)
	assert.True(t, cfg.Schema[0].Fields[1].Optional)

	limits := cfg.Runtime.Limits()
	assert.Equal(t, 2, limits.MinWorkers)
	assert.Equal(t, 6, limits.MaxWorkers)
	assert.Equal(t, 500*time.Millisecond, limits.SampleInterval)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
dataset:
  path: ./data
  tabels: ["*"]
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadEmptyFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestDurationDecoding(t *testing.T) {
	path := writeConfig(t, `
runtime:
  sample_interval: 150ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Duration(150*time.Millisecond), cfg.Runtime.SampleInterval)

	_, err = Load(writeConfig(t, "runtime:\n  sample_interval: soon\n"))
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	base := func() Config {
		cfg := DefaultConfig()
		cfg.Dataset.Path = "./data"
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty tables", func(c *Config) { c.Dataset.Tables = nil }, "dataset.tables"},
		{"bad include pattern", func(c *Config) { c.Dataset.Tables = []string{"["} }, "invalid pattern"},
		{"bad exclude pattern", func(c *Config) { c.Dataset.Exclude = []string{"["} }, "invalid pattern"},
		{"bad strategy", func(c *Config) { c.Index.Strategy = "octree" }, "index"},
		{"negative threshold", func(c *Config) { c.Thresholds.MinLineLength = -1 }, "thresholds"},
		{"relation missing table", func(c *Config) {
			c.Relations = []RelationRule{{Left: "parcels", Duplicates: true, Tolerance: 0.1}}
		}, "relations[0]"},
		{"relation no modes", func(c *Config) {
			c.Relations = []RelationRule{{Left: "a", Right: "b", Tolerance: 0.1}}
		}, "duplicates, overlaps"},
		{"relation zero tolerance", func(c *Config) {
			c.Relations = []RelationRule{{Left: "a", Right: "b", Duplicates: true}}
		}, "tolerance"},
		{"attribute missing field", func(c *Config) {
			c.Attributes = []AttributeRule{{Table: "parcels", References: AttributeTarget{Table: "zones"}}}
		}, "attributes[0]"},
		{"attribute missing target", func(c *Config) {
			c.Attributes = []AttributeRule{{Table: "parcels", Field: "zone"}}
		}, "references.table"},
		{"schema unnamed field", func(c *Config) {
			c.Schema = []TableSchema{{Table: "parcels", Fields: []SchemaField{{Type: "string"}}}}
		}, "name is required"},
		{"schema unknown type", func(c *Config) {
			c.Schema = []TableSchema{{Table: "parcels", Fields: []SchemaField{{Name: "zone", Type: "decimal"}}}}
		}, "unknown type"},
		{"workers inverted", func(c *Config) { c.Runtime.MinWorkers = 8; c.Runtime.MaxWorkers = 2 }, "runtime"},
		{"bad output format", func(c *Config) { c.Output.Format = "csv" }, "output.format"},
		{"empty output path", func(c *Config) { c.Output.Path = "" }, "output.path"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSelects(t *testing.T) {
	d := DatasetConfig{Tables: []string{"parcel*", "roads"}, Exclude: []string{"*_old"}}
	assert.True(t, d.Selects("parcels"))
	assert.True(t, d.Selects("roads"))
	assert.False(t, d.Selects("parcels_old"))
	assert.False(t, d.Selects("buildings"))
}
