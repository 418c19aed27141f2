package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

// RenderHTML writes a standalone page with the posts per day, the platform
// and post type split and the most used hashtags
func RenderHTML(w io.Writer, s *Summary) error {
	page := components.NewPage()
	page.PageTitle = "ctpull collection report"

	page.AddCharts(
		perDayChart(s),
		pieChart("Platforms", s.Platforms),
		pieChart("Post types", s.Types),
		hashtagChart(s),
	)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func perDayChart(s *Summary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Posts per day",
			Subtitle: fmt.Sprintf("%d posts from %d accounts", s.Records, s.Accounts),
		}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	x := make([]string, 0, len(s.PerDay))
	y := make([]opts.BarData, 0, len(s.PerDay))
	for _, c := range s.PerDay {
		x = append(x, c.Key)
		y = append(y, opts.BarData{Value: c.N})
	}
	bar.SetXAxis(x).AddSeries("Posts", y)
	return bar
}

func pieChart(title string, counts []Count) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	items := make([]opts.PieData, 0, len(counts))
	for _, c := range counts {
		items = append(items, opts.PieData{Name: c.Key, Value: c.N})
	}
	pie.AddSeries("Posts", items)
	return pie
}

func hashtagChart(s *Summary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Top hashtags"}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
	)

	x := make([]string, 0, len(s.TopHashtags))
	y := make([]opts.BarData, 0, len(s.TopHashtags))
	for _, c := range s.TopHashtags {
		x = append(x, "#"+c.Key)
		y = append(y, opts.BarData{Value: c.N})
	}
	bar.SetXAxis(x).AddSeries("Mentions", y)
	return bar
}
