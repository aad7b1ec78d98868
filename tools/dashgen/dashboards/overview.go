// Package dashboards assembles Grafana dashboard definitions from panel builders.
package dashboards

import (
	"github.com/grafana/grafana-foundation-sdk/go/cog"
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"

	"github.com/donaldgifford/price-monitor/tools/dashgen/panels"
)

// OverviewUID is the stable Grafana UID of the overview dashboard.
const OverviewUID = "pm-overview"

// row is a titled group of panels laid out left to right.
type row struct {
	title  string
	panels []cog.Builder[dashboard.Panel]
}

func overviewRows() []row {
	return []row{
		{"Overview", []cog.Builder[dashboard.Panel]{
			panels.HealthzStat(),
			panels.ReadyzStat(),
			panels.ActiveSubscriptionsStat(),
			panels.UptimeStat(),
		}},
		{"HTTP", []cog.Builder[dashboard.Panel]{
			panels.RequestRate(),
			panels.LatencyPercentiles(),
			panels.ErrorRate(),
		}},
		{"Poll Cycle", []cog.Builder[dashboard.Panel]{
			panels.CycleStateStat(),
			panels.NextPoll(),
			panels.CycleDuration(),
			panels.CycleOutcomes(),
			panels.ChecksRate(),
		}},
		{"Extraction", []cog.Builder[dashboard.Panel]{
			panels.ExtractionDuration(),
			panels.ExtractionFailures(),
		}},
		{"Changes & Notifications", []cog.Builder[dashboard.Panel]{
			panels.PriceChanges(),
			panels.NotificationsRate(),
			panels.NotificationLatency(),
			panels.NotificationFailures(),
			panels.StoreErrors(),
		}},
	}
}

// BuildOverview constructs the price monitor overview dashboard.
func BuildOverview() *dashboard.DashboardBuilder {
	b := dashboard.NewDashboardBuilder("Price Monitor Overview").
		Uid(OverviewUID).
		Tags([]string{"pm", "price-monitor"}).
		Refresh("1m").
		Time("now-24h", "now").
		Timezone("browser").
		Editable().
		Tooltip(dashboard.DashboardCursorSyncCrosshair).
		WithVariable(dashboard.NewDatasourceVariableBuilder("datasource").
			Label("Datasource").
			Type("prometheus"))

	for _, r := range overviewRows() {
		rb := dashboard.NewRowBuilder(r.title)
		for _, p := range r.panels {
			rb.WithPanel(p)
		}
		b.WithRow(rb)
	}
	return b
}
