package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultJob       = "sales_etl"
	DefaultPrecision = 2
	DefaultWorkers   = 4
	DefaultBatchSize = 5000
)

// Load reads a pipeline file, applies environment overrides and fills in
// defaults. The format follows the extension: .yaml/.yml are YAML, anything
// else is JSON. Unknown JSON fields are rejected.
func Load(path string) (Pipeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("read config: %w", err)
	}
	p, err := Decode(b, filepath.Ext(path))
	if err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	ApplyEnv(&p, os.LookupEnv)
	ApplyDefaults(&p)
	return p, nil
}

// Decode parses b as YAML when ext is ".yaml" or ".yml", otherwise as JSON.
func Decode(b []byte, ext string) (Pipeline, error) {
	var p Pipeline
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Pipeline{}, err
		}
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	return p, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. An empty path loads
// ".env" when present; a missing default file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides p from environment variables (12-factor style):
//
//	ETL_JOB, ETL_SOURCE, ETL_DESTINATION, ETL_STRICT_INTEGRITY, ETL_PRECISION,
//	ETL_WORKERS, ETL_PARTITIONS, ETL_WAREHOUSE_KIND, ETL_WAREHOUSE_DSN,
//	METRICS_BACKEND, PUSHGATEWAY_URL, DD_AGENT_ADDR, AWS_REGION, AWS_PROFILE
//
// Malformed numeric or boolean values are ignored.
func ApplyEnv(p *Pipeline, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("ETL_JOB", &p.Job)
	str("ETL_SOURCE", &p.Source)
	str("ETL_DESTINATION", &p.Destination)
	if v, ok := lookup("ETL_STRICT_INTEGRITY"); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			p.StrictIntegrity = b
		}
	}
	if v, ok := lookup("ETL_PRECISION"); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Precision = &n
		}
	}
	num("ETL_WORKERS", &p.Runtime.Workers)
	num("ETL_PARTITIONS", &p.Runtime.Partitions)
	str("ETL_WAREHOUSE_KIND", &p.Warehouse.Kind)
	str("ETL_WAREHOUSE_DSN", &p.Warehouse.DSN)
	str("METRICS_BACKEND", &p.Metrics.Backend)
	str("PUSHGATEWAY_URL", &p.Metrics.PushgatewayURL)
	str("DD_AGENT_ADDR", &p.Metrics.DatadogAddr)
	str("AWS_REGION", &p.AWS.Region)
	str("AWS_PROFILE", &p.AWS.Profile)
}

// ApplyDefaults fills zero values.
func ApplyDefaults(p *Pipeline) {
	if p.Job == "" {
		p.Job = DefaultJob
	}
	if p.Sources.Sales == "" {
		p.Sources.Sales = "sales"
	}
	if p.Sources.Products == "" {
		p.Sources.Products = "products"
	}
	if p.Sources.Customers == "" {
		p.Sources.Customers = "customers"
	}
	if p.Precision == nil {
		n := DefaultPrecision
		p.Precision = &n
	}
	if p.Parser.Kind == "" {
		p.Parser.Kind = "csv"
	}
	if p.Parser.Options == nil {
		p.Parser.Options = Options{}
	}
	p.Runtime.Workers = pickInt(p.Runtime.Workers, DefaultWorkers)
	p.Runtime.Partitions = pickInt(p.Runtime.Partitions, p.Runtime.Workers)
	p.Warehouse.BatchSize = pickInt(p.Warehouse.BatchSize, DefaultBatchSize)
	if p.Metrics.Backend == "" {
		p.Metrics.Backend = "none"
	}
}

// pickInt chooses the first positive value a, otherwise b.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
