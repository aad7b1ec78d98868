// Package panels provides Grafana dashboard panel builders for
// price-monitor metrics.
package panels

import (
	"fmt"
	"strings"

	"github.com/grafana/grafana-foundation-sdk/go/cog"
	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/grafana/grafana-foundation-sdk/go/prometheus"
	"github.com/grafana/grafana-foundation-sdk/go/stat"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

// Job is the Prometheus scrape job name of the price monitor.
const Job = "price-monitor"

// Panel sizes on the 24-column grid.
const (
	StatWidth  = 6
	StatHeight = 4

	TSWidth  = 12
	TSHeight = 8

	FullWidth = 24
)

// DSRef references the dashboard's ${datasource} variable.
func DSRef() dashboard.DataSourceRef {
	return dashboard.DataSourceRef{
		Type: cog.ToPtr("prometheus"),
		Uid:  cog.ToPtr("${datasource}"),
	}
}

// PromQuery builds a Prometheus target.
func PromQuery(expr, legendFormat, refID string) *prometheus.DataqueryBuilder {
	return prometheus.NewDataqueryBuilder().
		Expr(expr).
		LegendFormat(legendFormat).
		RefId(refID)
}

// timeSeries returns a half-width line panel with the dashboard defaults.
// Callers override size, thresholds or draw style as needed.
func timeSeries(title, description string) *timeseries.PanelBuilder {
	return timeseries.NewPanelBuilder().
		Title(title).
		Description(description).
		Datasource(DSRef()).
		Height(TSHeight).
		Span(TSWidth).
		FillOpacity(10).
		LineWidth(2).
		Thresholds(steps("green")).
		ColorScheme(ColorSchemePaletteClassic()).
		DrawStyle(common.GraphDrawStyleLine)
}

// statPanel returns a quarter-width stat panel with no sparkline.
func statPanel(title, description string) *stat.PanelBuilder {
	return stat.NewPanelBuilder().
		Title(title).
		Description(description).
		Datasource(DSRef()).
		Height(StatHeight).
		Span(StatWidth).
		ColorScheme(ColorSchemeThresholds()).
		GraphMode(common.BigValueGraphModeNone)
}

// steps builds absolute thresholds starting at base.
func steps(base string, next ...dashboard.Threshold) cog.Builder[dashboard.ThresholdsConfig] {
	return dashboard.NewThresholdsConfigBuilder().
		Mode(dashboard.ThresholdsModeAbsolute).
		Steps(append([]dashboard.Threshold{{Color: base}}, next...))
}

// at is the threshold step that switches to color from v.
func at(v float64, color string) dashboard.Threshold {
	return dashboard.Threshold{Value: cog.ToPtr(v), Color: color}
}

// ThresholdsRedGreen is red below greenAbove and green from it.
func ThresholdsRedGreen(greenAbove float64) cog.Builder[dashboard.ThresholdsConfig] {
	return steps("red", at(greenAbove, "green"))
}

// ThresholdsGreenYellowRed returns three-tier thresholds.
func ThresholdsGreenYellowRed(yellow, red float64) cog.Builder[dashboard.ThresholdsConfig] {
	return steps("green", at(yellow, "yellow"), at(red, "red"))
}

// ThresholdsGreenOnly returns a single green step.
func ThresholdsGreenOnly() cog.Builder[dashboard.ThresholdsConfig] {
	return steps("green")
}

// ColorSchemeThresholds colors values by their threshold step.
func ColorSchemeThresholds() cog.Builder[dashboard.FieldColor] {
	return dashboard.NewFieldColorBuilder().
		Mode(dashboard.FieldColorModeIdThresholds)
}

// ColorSchemePaletteClassic colors series from the classic palette.
func ColorSchemePaletteClassic() cog.Builder[dashboard.FieldColor] {
	return dashboard.NewFieldColorBuilder().
		Mode(dashboard.FieldColorModeIdPaletteClassic)
}

// TableLegend shows the legend as a table below the graph.
func TableLegend(calcs ...string) *common.VizLegendOptionsBuilder {
	return common.NewVizLegendOptionsBuilder().
		DisplayMode(common.LegendDisplayModeTable).
		Placement(common.LegendPlacementBottom).
		Calcs(calcs)
}

// MultiTooltip shows every series, highest first.
func MultiTooltip() *common.VizTooltipOptionsBuilder {
	return common.NewVizTooltipOptionsBuilder().
		Mode(common.TooltipDisplayModeMulti).
		Sort(common.SortOrderDescending)
}

// jobSel returns the label selector that scopes a metric to Job, merged
// with any extra matchers such as `status=~"5.."`.
func jobSel(matchers ...string) string {
	all := append([]string{fmt.Sprintf("job=%q", Job)}, matchers...)
	return "{" + strings.Join(all, ",") + "}"
}
