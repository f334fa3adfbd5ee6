package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced but does not
	// block execution.
	SeverityWarning IssueSeverity = "warning"
)

// MaxPrecision bounds Pipeline.Precision.
const MaxPrecision = 8

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "warehouse.dsn",
// "date_layouts[1]").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation of p. It does not mutate p.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateLocations(p)...)
	if n := p.Places(); n < 0 || n > MaxPrecision {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "precision",
			Message:  fmt.Sprintf("precision=%d; must be between 0 and %d", n, MaxPrecision),
		})
	}
	issues = append(issues, validateDateLayouts(p.DateLayouts)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateWarehouse(p.Warehouse)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

func validateLocations(p Pipeline) []Issue {
	var issues []Issue
	usesS3 := false
	for _, loc := range []struct{ path, val string }{
		{"source", p.Source},
		{"destination", p.Destination},
	} {
		v := strings.TrimSpace(loc.val)
		if v == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     loc.path,
				Message:  loc.path + " must not be empty",
			})
			continue
		}
		if strings.HasPrefix(v, "s3://") {
			usesS3 = true
			if bucket := strings.SplitN(strings.TrimPrefix(v, "s3://"), "/", 2)[0]; bucket == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     loc.path,
					Message:  fmt.Sprintf("%q has no bucket", v),
				})
			}
		}
	}
	if p.Source != "" && strings.TrimRight(p.Source, "/") == strings.TrimRight(p.Destination, "/") {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "destination",
			Message:  "destination must differ from source; outputs overwrite whole prefixes",
		})
	}
	if usesS3 && p.AWS.Region == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "aws.region",
			Message:  "no region configured; the SDK default chain (AWS_REGION, shared config) will be used",
		})
	}
	if p.AWS.Endpoint != "" {
		if _, err := url.ParseRequestURI(p.AWS.Endpoint); err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "aws.endpoint",
				Message:  fmt.Sprintf("invalid endpoint URL: %v", err),
			})
		}
	}
	for _, s := range []struct{ path, val string }{
		{"sources.sales", p.Sources.Sales},
		{"sources.products", p.Sources.Products},
		{"sources.customers", p.Sources.Customers},
	} {
		if strings.HasPrefix(s.val, "/") || strings.Contains(s.val, "..") {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     s.path,
				Message:  fmt.Sprintf("%q must be relative to source", s.val),
			})
		}
	}
	return issues
}

// layoutSample is formatted with each layout and parsed back.
var layoutSample = time.Date(2024, 11, 23, 0, 0, 0, 0, time.UTC)

func validateDateLayouts(layouts []string) []Issue {
	var issues []Issue
	for i, l := range layouts {
		path := fmt.Sprintf("date_layouts[%d]", i)
		if strings.TrimSpace(l) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: "layout must not be empty"})
			continue
		}
		got, err := time.Parse(l, layoutSample.Format(l))
		if err != nil || got.Year() != layoutSample.Year() || got.Month() != layoutSample.Month() || got.Day() != layoutSample.Day() {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path,
				Message:  fmt.Sprintf("layout %q does not carry a full date (use Go reference layout, e.g. 02/01/2006)", l),
			})
		}
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	if p.Kind != "" && p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q; only csv is implemented", p.Kind),
		})
		return issues
	}
	if c := p.Options.String("comma", ","); utf8.RuneCountInString(c) != 1 || c == "\"" || c == "\n" || c == "\r" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.options.comma",
			Message:  fmt.Sprintf("comma %q must be a single character other than quote or newline", c),
		})
	}
	if raw, ok := p.Options.Any("header_map").(map[string]any); ok {
		for k, v := range raw {
			if _, ok := v.(string); !ok {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     "parser.options.header_map." + k,
					Message:  fmt.Sprintf("non-string target %v is ignored", v),
				})
			}
		}
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}
	if r.Partitions < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.partitions",
			Message:  "partitions must not be negative",
		})
	}
	if r.Partitions > 1024 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "runtime.partitions",
			Message:  fmt.Sprintf("partitions=%d; more partitions than groups only adds overhead", r.Partitions),
		})
	}
	return issues
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateWarehouse(w Warehouse) []Issue {
	var issues []Issue
	if !w.Enabled() {
		return nil
	}
	switch w.Kind {
	case "postgres", "sqlite", "mssql":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.kind",
			Message:  fmt.Sprintf("unknown warehouse kind %q; want postgres, sqlite or mssql", w.Kind),
		})
	}
	if strings.TrimSpace(w.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.dsn",
			Message:  "warehouse.dsn must not be empty",
		})
	}
	if w.Schema != "" && !identRe.MatchString(w.Schema) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.schema",
			Message:  fmt.Sprintf("schema %q is not a plain identifier", w.Schema),
		})
	}
	if w.Kind == "sqlite" && w.Schema != "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "warehouse.schema",
			Message:  "sqlite has no schemas; warehouse.schema is ignored",
		})
	}
	if w.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "warehouse.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL != "" {
			if _, err := url.ParseRequestURI(m.PushgatewayURL); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "metrics.pushgateway_url",
					Message:  fmt.Sprintf("invalid URL: %v", err),
				})
			}
		}
	case "datadog":
		if m.DatadogAddr != "" && !strings.HasPrefix(m.DatadogAddr, "unix://") {
			if _, _, err := net.SplitHostPort(m.DatadogAddr); err != nil {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "metrics.datadog_addr",
					Message:  fmt.Sprintf("want host:port or unix:// path: %v", err),
				})
			}
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
	}
	return issues
}
