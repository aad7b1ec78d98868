package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/donaldgifford/price-monitor/tools/dashgen/dashboards"
	"github.com/donaldgifford/price-monitor/tools/dashgen/rules"
	"github.com/donaldgifford/price-monitor/tools/dashgen/validate"
)

const generatedHeader = "# Code generated by dashgen. DO NOT EDIT.\n"

func main() {
	validateOnly := flag.Bool("validate", false, "validate generated artifacts without writing files")
	outputDir := flag.String("output", "", "override output directory")
	operatorOnly := flag.Bool("operator-only", false, "skip plain Prometheus rule files")
	flag.Parse()

	cfg := DefaultConfig()
	cfg.PlainRules = !*operatorOnly
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *validateOnly); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// artifact is one generated file relative to the output directory.
type artifact struct {
	path string
	data []byte
}

func run(cfg Config, validateOnly bool) error {
	artifacts, err := build(cfg)
	if err != nil {
		return err
	}

	if validateOnly {
		fmt.Println("validation passed")
		return nil
	}

	for _, a := range artifacts {
		dst := filepath.Join(cfg.OutputDir, a.path)
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}
		if err := os.WriteFile(dst, a.data, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
		fmt.Printf("dashgen: wrote %s\n", dst)
	}
	return nil
}

// build generates and validates every enabled artifact.
func build(cfg Config) ([]artifact, error) {
	var out []artifact

	if cfg.DashboardEnabled {
		dash, err := dashboards.BuildOverview().Build()
		if err != nil {
			return nil, fmt.Errorf("building overview dashboard: %w", err)
		}
		if res := validate.Dashboard(dash, KnownMetrics); !res.Ok() {
			return nil, fmt.Errorf("overview dashboard: %v", res.Errors)
		}
		data, err := json.MarshalIndent(dash, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding overview dashboard: %w", err)
		}
		out = append(out, artifact{
			path: filepath.Join("grafana", "data", dashboards.OverviewUID+".json"),
			data: append(data, '\n'),
		})
	}

	if cfg.RulesEnabled {
		for _, cr := range []rules.PrometheusRule{rules.RecordingRules(), rules.AlertRules()} {
			if res := validate.Rules(cr, KnownMetrics); !res.Ok() {
				return nil, fmt.Errorf("%s: %v", cr.Metadata.Name, res.Errors)
			}
			data, err := yaml.Marshal(cr)
			if err != nil {
				return nil, fmt.Errorf("encoding %s: %w", cr.Metadata.Name, err)
			}
			out = append(out, artifact{
				path: filepath.Join("prometheus", cr.Metadata.Name+".yaml"),
				data: append([]byte(generatedHeader), data...),
			})

			if !cfg.PlainRules {
				continue
			}
			plain, err := yaml.Marshal(cr.File())
			if err != nil {
				return nil, fmt.Errorf("encoding %s rules file: %w", cr.Metadata.Name, err)
			}
			out = append(out, artifact{
				path: filepath.Join("prometheus", "rules", cr.Metadata.Name+".rules.yml"),
				data: append([]byte(generatedHeader), plain...),
			})
		}
	}

	return out, nil
}
