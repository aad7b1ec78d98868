// Package validate checks generated dashboards and rules for PromQL syntax
// errors and references to metrics the service does not export.
package validate

import (
	"fmt"

	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/grafana/grafana-foundation-sdk/go/prometheus"
	"github.com/prometheus/prometheus/promql/parser"

	"github.com/donaldgifford/price-monitor/tools/dashgen/rules"
)

// Result collects validation findings.
type Result struct {
	Errors   []string
	Warnings []string
}

// Ok reports whether validation found no errors.
func (r *Result) Ok() bool {
	return len(r.Errors) == 0
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Dashboard validates every Prometheus target in d against known.
func Dashboard(d dashboard.Dashboard, known map[string]bool) *Result {
	r := &Result{}
	for _, p := range d.Panels {
		if p.Panel != nil {
			checkPanel(r, p.Panel, known)
		}
		if p.RowPanel != nil {
			for i := range p.RowPanel.Panels {
				checkPanel(r, &p.RowPanel.Panels[i], known)
			}
		}
	}
	return r
}

// Rules validates every rule expression in cr against known.
func Rules(cr rules.PrometheusRule, known map[string]bool) *Result {
	r := &Result{}
	for _, g := range cr.Spec.Groups {
		for _, rule := range g.Rules {
			name := rule.Record
			if name == "" {
				name = rule.Alert
			}
			if name == "" {
				r.errorf("group %s: rule has neither record nor alert", g.Name)
			}
			Expr(r, fmt.Sprintf("%s/%s", g.Name, name), rule.Expr, known)
		}
	}
	return r
}

func checkPanel(r *Result, p *dashboard.Panel, known map[string]bool) {
	title := "<untitled>"
	if p.Title != nil {
		title = *p.Title
	}
	if len(p.Targets) == 0 {
		r.warnf("panel %q has no targets", title)
		return
	}
	for _, t := range p.Targets {
		var expr string
		switch q := t.(type) {
		case *prometheus.Dataquery:
			expr = q.Expr
		case prometheus.Dataquery:
			expr = q.Expr
		default:
			r.warnf("panel %q: non-prometheus target %T", title, t)
			continue
		}
		Expr(r, fmt.Sprintf("panel %q", title), expr, known)
	}
}

// Expr parses expr and records an error for syntax problems or unknown
// metric names.
func Expr(r *Result, where, expr string, known map[string]bool) {
	if expr == "" {
		r.errorf("%s: empty expression", where)
		return
	}
	parsed, err := parser.ParseExpr(expr)
	if err != nil {
		r.errorf("%s: %v", where, err)
		return
	}
	parser.Inspect(parsed, func(node parser.Node, _ []parser.Node) error {
		vs, ok := node.(*parser.VectorSelector)
		if !ok || vs.Name == "" {
			return nil
		}
		if !known[vs.Name] {
			r.errorf("%s: unknown metric %q", where, vs.Name)
		}
		return nil
	})
}
