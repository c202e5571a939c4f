// Package dashboard renders the operator charts: cached posts per source
// and the most frequent query tokens.
package dashboard

import (
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/qepting91/linkfinder/internal/cache"
	"github.com/qepting91/linkfinder/internal/feedback"
)

const topTokens = 15

type Dashboard struct {
	cache    *cache.Store
	feedback *feedback.Store
	logger   *slog.Logger
}

// New builds a dashboard over the cache and the feedback store. Either may
// be nil, which renders an empty chart.
func New(c *cache.Store, fb *feedback.Store, logger *slog.Logger) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{cache: c, feedback: fb, logger: logger}
}

// Render writes the chart page to w.
func (d *Dashboard) Render(w io.Writer) error {
	page := components.NewPage()
	page.AddCharts(d.sourcePie(), d.tokenBar())
	return page.Render(w)
}

func (d *Dashboard) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := d.Render(w); err != nil {
		d.logger.Error("dashboard render failed", "err", err)
	}
}

func (d *Dashboard) sourcePie() *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Cached Posts", Subtitle: "per source"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	var counts map[string]int
	if d.cache != nil {
		counts = d.cache.Counts()
	}
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)

	items := make([]opts.PieData, 0, len(names))
	for _, k := range names {
		items = append(items, opts.PieData{Name: k, Value: counts[k]})
	}
	pie.AddSeries("Posts", items)
	return pie
}

func (d *Dashboard) tokenBar() *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Query Tokens", Subtitle: "by frequency"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	var top []feedback.TopQuery
	if d.feedback != nil {
		top = d.feedback.TopTokens(topTokens)
	}
	x := make([]string, 0, len(top))
	freq := make([]opts.BarData, 0, len(top))
	boost := make([]opts.BarData, 0, len(top))
	for _, t := range top {
		x = append(x, t.Query)
		freq = append(freq, opts.BarData{Value: t.Frequency})
		boost = append(boost, opts.BarData{Value: t.Boost})
	}
	bar.SetXAxis(x).
		AddSeries("Frequency", freq).
		AddSeries("Boost", boost)
	return bar
}
