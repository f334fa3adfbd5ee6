// Package config defines the configuration model of the sales ETL job.
//
// A pipeline file is JSON or YAML (chosen by file extension) and decodes into
// Pipeline. Environment variables override file values, and CLI flags
// override both. Free-form parser settings live in an Options bag with typed
// accessors.
//
// Example (YAML):
//
//	job: sales_etl
//	source: s3://raw-bucket
//	destination: s3://processed-bucket
//	strict_integrity: false
//	precision: 2
//	parser:
//	  kind: csv
//	  options: { comma: ",", trim_space: true }
//	warehouse:
//	  kind: sqlite
//	  dsn: file:warehouse.db
package config

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Pipeline is the top-level configuration of one ETL job.
type Pipeline struct {
	// Job names the run for logs and metrics.
	Job string `json:"job" yaml:"job"`

	// Source is the raw data location: a local directory or s3://bucket/prefix.
	Source string `json:"source" yaml:"source"`

	// Destination is where outputs are written, same location forms as Source.
	Destination string `json:"destination" yaml:"destination"`

	// Sources locates each raw input relative to Source.
	Sources Sources `json:"sources" yaml:"sources"`

	// StrictIntegrity makes dangling foreign keys abort the run.
	StrictIntegrity bool `json:"strict_integrity" yaml:"strict_integrity"`

	// Precision is the number of decimal places money and ratio columns are
	// rounded to (half away from zero). 0 rounds to whole units; leaving it
	// unset selects DefaultPrecision.
	Precision *int `json:"precision" yaml:"precision"`

	// DateLayouts are extra Go time layouts accepted for order_date.
	DateLayouts []string `json:"date_layouts" yaml:"date_layouts"`

	Parser    Parser        `json:"parser" yaml:"parser"`
	AWS       AWS           `json:"aws" yaml:"aws"`
	Runtime   RuntimeConfig `json:"runtime" yaml:"runtime"`
	Warehouse Warehouse     `json:"warehouse" yaml:"warehouse"`
	Metrics   Metrics       `json:"metrics" yaml:"metrics"`
}

// Sources holds per-input paths, relative to Pipeline.Source. A path ending in
// ".csv" names one file; anything else is a prefix whose *.csv objects are
// concatenated.
type Sources struct {
	Sales     string `json:"sales" yaml:"sales"`
	Products  string `json:"products" yaml:"products"`
	Customers string `json:"customers" yaml:"customers"`
}

// Parser selects how raw bytes become rows. Only "csv" is implemented.
type Parser struct {
	Kind string `json:"kind" yaml:"kind"`

	// Options is interpreted by the parser. For CSV:
	//   comma (string), trim_space (bool), lazy_quotes (bool),
	//   header_map (object: source header -> canonical name)
	Options Options `json:"options" yaml:"options"`
}

// AWS configures the S3 client used for s3:// locations.
type AWS struct {
	Region  string `json:"region" yaml:"region"`
	Profile string `json:"profile" yaml:"profile"`

	// Endpoint overrides the S3 endpoint (MinIO, LocalStack). PathStyle is
	// usually required alongside it.
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	PathStyle bool   `json:"path_style" yaml:"path_style"`
}

// RuntimeConfig controls concurrency.
type RuntimeConfig struct {
	// Workers bounds concurrent output writes.
	Workers int `json:"workers" yaml:"workers"`

	// Partitions is the number of hash partitions each aggregation uses.
	Partitions int `json:"partitions" yaml:"partitions"`
}

// Warehouse optionally mirrors every output table into a SQL database.
type Warehouse struct {
	// Kind is "", "none", "postgres", "sqlite" or "mssql".
	Kind string `json:"kind" yaml:"kind"`
	DSN  string `json:"dsn" yaml:"dsn"`

	// Schema qualifies table names (e.g. "analytics"). Ignored by sqlite.
	Schema string `json:"schema" yaml:"schema"`

	// BatchSize is the number of rows per COPY/INSERT batch.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// Places returns the configured rounding precision, or DefaultPrecision when
// none is set.
func (p Pipeline) Places() int {
	if p.Precision == nil {
		return DefaultPrecision
	}
	return *p.Precision
}

// Enabled reports whether a warehouse load is configured.
func (w Warehouse) Enabled() bool { return w.Kind != "" && w.Kind != "none" }

// Metrics selects a metrics backend.
type Metrics struct {
	// Backend is "none", "pushgateway" or "datadog".
	Backend        string `json:"backend" yaml:"backend"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr"`
}

// Options is a small helper to fetch typed values from arbitrary maps. It
// performs only minimal type coercion and returns the provided default when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64
// and YAML integers as int; both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns the string entries of an object value. It is never nil.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns the string elements of an array value, or nil.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML documents.
func (o *Options) UnmarshalYAML(n *yaml.Node) error {
	var tmp map[string]any
	if err := n.Decode(&tmp); err != nil {
		return err
	}
	if tmp == nil {
		tmp = map[string]any{}
	}
	*o = Options(tmp)
	return nil
}
