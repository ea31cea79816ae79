// Package config loads and validates the run configuration. A config
// file only needs to name what differs from the defaults: Load decodes
// on top of DefaultConfig, so absent keys keep their default values and
// unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-hclog"
	"gopkg.in/yaml.v3"

	"github.com/bsaid97/go-spatial-check/pkg/index"
	"github.com/bsaid97/go-spatial-check/pkg/schedule"
	"github.com/bsaid97/go-spatial-check/pkg/source"
	"github.com/bsaid97/go-spatial-check/pkg/validate"
)

// Config is the full run configuration.
type Config struct {
	Dataset    DatasetConfig    `yaml:"dataset"`
	Index      IndexConfig      `yaml:"index"`
	Checks     ChecksConfig     `yaml:"checks"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Relations  []RelationRule   `yaml:"relations"`
	Attributes []AttributeRule  `yaml:"attributes"`
	Schema     []TableSchema    `yaml:"schema"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Output     OutputConfig     `yaml:"output"`
	Log        LogConfig        `yaml:"log"`
}

// DatasetConfig names the dataset and selects tables by glob pattern.
type DatasetConfig struct {
	Path    string   `yaml:"path"`
	Tables  []string `yaml:"tables"`
	Exclude []string `yaml:"exclude"`
}

// Selects reports whether a table name passes the include and exclude
// patterns. Patterns must have been validated beforehand.
func (d DatasetConfig) Selects(name string) bool {
	selected := false
	for _, pat := range d.Tables {
		if ok, _ := doublestar.Match(pat, name); ok {
			selected = true
			break
		}
	}
	if !selected {
		return false
	}
	for _, pat := range d.Exclude {
		if ok, _ := doublestar.Match(pat, name); ok {
			return false
		}
	}
	return true
}

// IndexConfig selects the spatial index strategy used by the dangle and
// relation scans.
type IndexConfig struct {
	Strategy string `yaml:"strategy"`
}

// ChecksConfig switches individual geometry checks on and off.
type ChecksConfig struct {
	Validity   bool `yaml:"validity"`
	Simplicity bool `yaml:"simplicity"`
	Spikes     bool `yaml:"spikes"`
	Slivers    bool `yaml:"slivers"`
	Size       bool `yaml:"size"`
	Structure  bool `yaml:"structure"`
	Dangles    bool `yaml:"dangles"`
}

// ThresholdsConfig carries the numeric knobs of the geometry checks.
type ThresholdsConfig struct {
	MinLineLength        float64 `yaml:"min_line_length"`
	MinPolygonArea       float64 `yaml:"min_polygon_area"`
	SliverMaxArea        float64 `yaml:"sliver_max_area"`
	SliverMaxCompactness float64 `yaml:"sliver_max_compactness"`
	SliverMinElongation  float64 `yaml:"sliver_min_elongation"`
	SpikeMaxAngleDeg     float64 `yaml:"spike_max_angle_deg"`
	SpikeReportAll       bool    `yaml:"spike_report_all"`
	RingClosureTolerance float64 `yaml:"ring_closure_tolerance"`
	DangleSearchDistance float64 `yaml:"dangle_search_distance"`
	DangleSnapTolerance  float64 `yaml:"dangle_snap_tolerance"`
}

// RelationRule asks for duplicate or overlap detection between two
// tables. Left and Right may name the same table.
type RelationRule struct {
	Left       string  `yaml:"left"`
	Right      string  `yaml:"right"`
	Duplicates bool    `yaml:"duplicates"`
	Overlaps   bool    `yaml:"overlaps"`
	Tolerance  float64 `yaml:"tolerance"`
}

// AttributeRule asks that every value of Table.Field exist among the
// values of the referenced table's field. An empty references.field
// matches against feature identifiers instead of a column.
type AttributeRule struct {
	Table      string          `yaml:"table"`
	Field      string          `yaml:"field"`
	References AttributeTarget `yaml:"references"`
}

// AttributeTarget names the referenced side of an attribute rule.
type AttributeTarget struct {
	Table string `yaml:"table"`
	Field string `yaml:"field"`
}

// TableSchema declares the expected columns of one table. A listed
// field must be present unless marked optional; a declared type is
// checked whenever the field is present.
type TableSchema struct {
	Table  string        `yaml:"table"`
	Fields []SchemaField `yaml:"fields"`
}

// SchemaField is one expected column.
type SchemaField struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional"`
}

// RuntimeConfig bounds the worker pool. Zero values fall back to the
// scheduler defaults.
type RuntimeConfig struct {
	MinWorkers     int      `yaml:"min_workers"`
	MaxWorkers     int      `yaml:"max_workers"`
	SampleInterval Duration `yaml:"sample_interval"`
}

// Limits converts the runtime section into scheduler limits, filling
// unset values from the defaults.
func (r RuntimeConfig) Limits() schedule.Limits {
	l := schedule.DefaultLimits()
	if r.MinWorkers > 0 {
		l.MinWorkers = r.MinWorkers
	}
	if r.MaxWorkers > 0 {
		l.MaxWorkers = r.MaxWorkers
	}
	if r.SampleInterval > 0 {
		l.SampleInterval = time.Duration(r.SampleInterval)
	}
	return l
}

// OutputConfig selects where findings go.
type OutputConfig struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration is a time.Duration that decodes from strings like "200ms".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// DefaultConfig returns the configuration a run uses when the file
// leaves everything unset. The dataset path has no default.
func DefaultConfig() Config {
	p := validate.DefaultParams()
	return Config{
		Dataset: DatasetConfig{Tables: []string{"*"}},
		Index:   IndexConfig{Strategy: string(index.StrategyGrid)},
		Checks: ChecksConfig{
			Validity:   true,
			Simplicity: true,
			Spikes:     true,
			Slivers:    true,
			Size:       true,
			Structure:  true,
			Dangles:    true,
		},
		Thresholds: ThresholdsConfig{
			MinLineLength:        p.MinLineLength,
			MinPolygonArea:       p.MinPolygonArea,
			SliverMaxArea:        p.SliverMaxArea,
			SliverMaxCompactness: p.SliverMaxCompactness,
			SliverMinElongation:  p.SliverMinElongation,
			SpikeMaxAngleDeg:     p.SpikeMaxAngleDeg,
			SpikeReportAll:       p.SpikeReportAll,
			RingClosureTolerance: p.RingClosureTolerance,
			DangleSearchDistance: p.DangleSearchDistance,
			DangleSnapTolerance:  p.DangleSnapTolerance,
		},
		Runtime: RuntimeConfig{MinWorkers: 1, SampleInterval: Duration(2 * time.Second)},
		Output:  OutputConfig{Format: "geojson", Path: "findings.json"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads a YAML file on top of the defaults. It does not validate;
// callers apply their own overrides first and then call Validate.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Params converts the threshold section into check parameters.
func (c Config) Params() validate.Params {
	t := c.Thresholds
	return validate.Params{
		MinLineLength:        t.MinLineLength,
		MinPolygonArea:       t.MinPolygonArea,
		SliverMaxArea:        t.SliverMaxArea,
		SliverMaxCompactness: t.SliverMaxCompactness,
		SliverMinElongation:  t.SliverMinElongation,
		SpikeMaxAngleDeg:     t.SpikeMaxAngleDeg,
		SpikeReportAll:       t.SpikeReportAll,
		RingClosureTolerance: t.RingClosureTolerance,
		DangleSearchDistance: t.DangleSearchDistance,
		DangleSnapTolerance:  t.DangleSnapTolerance,
	}
}

// Strategy returns the validated index strategy.
func (c Config) Strategy() index.Strategy {
	s, _ := index.ParseStrategy(c.Index.Strategy)
	return s
}

// Validate checks the whole configuration and returns the first
// problem found. A bad value is an error here, never a silent default.
func (c Config) Validate() error {
	if c.Dataset.Path == "" {
		return errors.New("dataset.path is required")
	}
	if len(c.Dataset.Tables) == 0 {
		return errors.New("dataset.tables must name at least one pattern")
	}
	for _, pat := range c.Dataset.Tables {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("dataset.tables: invalid pattern %q", pat)
		}
	}
	for _, pat := range c.Dataset.Exclude {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("dataset.exclude: invalid pattern %q", pat)
		}
	}
	if _, err := index.ParseStrategy(c.Index.Strategy); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	for i, r := range c.Relations {
		if r.Left == "" || r.Right == "" {
			return fmt.Errorf("relations[%d]: left and right tables are required", i)
		}
		if !r.Duplicates && !r.Overlaps {
			return fmt.Errorf("relations[%d]: enable duplicates, overlaps or both", i)
		}
		if r.Tolerance <= 0 {
			return fmt.Errorf("relations[%d]: tolerance must be positive", i)
		}
	}
	for i, a := range c.Attributes {
		if a.Table == "" || a.Field == "" {
			return fmt.Errorf("attributes[%d]: table and field are required", i)
		}
		if a.References.Table == "" {
			return fmt.Errorf("attributes[%d]: references.table is required", i)
		}
	}
	for i, s := range c.Schema {
		if s.Table == "" {
			return fmt.Errorf("schema[%d]: table is required", i)
		}
		for j, f := range s.Fields {
			if f.Name == "" {
				return fmt.Errorf("schema[%d].fields[%d]: name is required", i, j)
			}
			if f.Type != "" && !knownFieldType(f.Type) {
				return fmt.Errorf("schema[%d].fields[%d]: unknown type %q", i, j, f.Type)
			}
		}
	}
	if err := c.Runtime.Limits().Validate(); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	switch c.Output.Format {
	case "geojson", "shapefile":
	default:
		return fmt.Errorf("output.format %q (want geojson or shapefile)", c.Output.Format)
	}
	if c.Output.Path == "" {
		return errors.New("output.path is required")
	}
	if hclog.LevelFromString(c.Log.Level) == hclog.NoLevel {
		return fmt.Errorf("log.level %q is not a log level", c.Log.Level)
	}
	return nil
}

func knownFieldType(t string) bool {
	switch source.FieldType(t) {
	case source.FieldString, source.FieldInteger, source.FieldFloat, source.FieldLogical, source.FieldDate:
		return true
	}
	return false
}
