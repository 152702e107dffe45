package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/code996/pkg/analysis"
	"github.com/Sumatoshi-tech/code996/pkg/ranking"
)

// Chart palette.
const (
	colorWorking  = "#5470c6"
	colorOvertime = "#ee6666"
	colorIndex    = "#fac858"
	colorRatio    = "#91cc75"
	chartHeight   = "420px"
	pageTitle     = "code996"
	missingValue  = "-"
)

var weekdayLabels = []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func chartInit() opts.Initialization {
	return opts.Initialization{Width: "100%", Height: chartHeight, PageTitle: pageTitle}
}

func newBar(title, subtitle string, labels []string) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(chartInit()),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "8%"}),
	)
	bar.SetXAxis(labels)

	return bar
}

func barData[T int | float64](values []T) []opts.BarData {
	data := make([]opts.BarData, len(values))
	for i, v := range values {
		data[i] = opts.BarData{Value: v}
	}

	return data
}

func itemColor(c string) charts.SeriesOpts {
	return charts.WithItemStyleOpts(opts.ItemStyle{Color: c})
}

func renderPage(w io.Writer, items ...components.Charter) error {
	page := components.NewPage()
	page.PageTitle = pageTitle
	page.AddCharts(items...)

	err := page.Render(w)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

func plotRepo(w io.Writer, rep *analysis.RepoReport) error {
	subtitle := fmt.Sprintf("%s, 996 index %s, overtime %.0f%%",
		rep.TimeRange, rep.Result.Index996Display, rep.Result.OvertimeRatioPercent)

	working := make([]int, len(rep.Data.HourHistogram))
	overtimeHours := make([]int, len(rep.Data.HourHistogram))
	hourLabels := make([]string, len(rep.Data.HourHistogram))

	for hour, n := range rep.Data.HourHistogram {
		hourLabels[hour] = fmt.Sprintf("%02d", hour)
		// Split by clock only; weekend commits are not separated here.
		if rep.WorkHours.Contains(hour) {
			working[hour] = n
		} else {
			overtimeHours[hour] = n
		}
	}

	hours := newBar("Commits by hour", subtitle, hourLabels)
	hours.AddSeries("in hours", barData(working), itemColor(colorWorking), charts.WithBarChartOpts(opts.BarChart{Stack: "hour"}))
	hours.AddSeries("after hours", barData(overtimeHours), itemColor(colorOvertime), charts.WithBarChartOpts(opts.BarChart{Stack: "hour"}))

	days := newBar("Commits by weekday", "", weekdayLabels)
	days.AddSeries("commits", barData(rep.Data.WeekdayHistogram[:]), itemColor(colorWorking))

	return renderPage(w, hours, days)
}

func plotRanking(w io.Writer, res *ranking.AuthorRankingResult) error {
	labels := make([]string, len(res.Authors))
	index := make([]float64, len(res.Authors))
	ratio := make([]float64, len(res.Authors))

	for i, author := range res.Authors {
		labels[i] = author.Identity.Name
		index[i] = author.Index996
		ratio[i] = author.OvertimeRatioPercent
	}

	bar := newBar("Author ranking", fmt.Sprintf("%s, sorted by %s", res.TimeRange, res.SortBy), labels)
	bar.AddSeries("996 index", barData(index), itemColor(colorIndex))
	bar.AddSeries("overtime %", barData(ratio), itemColor(colorOvertime))

	return renderPage(w, bar)
}

func plotTrend(w io.Writer, rep *analysis.TrendReport) error {
	labels := make([]string, len(rep.Points))
	index := make([]opts.LineData, len(rep.Points))
	ratio := make([]opts.LineData, len(rep.Points))
	commits := make([]int, len(rep.Points))

	for i, point := range rep.Points {
		labels[i] = point.Month.Format("2006-01")
		commits[i] = point.Commits

		if point.Insufficient {
			index[i] = opts.LineData{Value: missingValue}
			ratio[i] = opts.LineData{Value: missingValue}

			continue
		}

		index[i] = opts.LineData{Value: point.Result.Index996}
		ratio[i] = opts.LineData{Value: point.Result.OvertimeRatioPercent}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(chartInit()),
		charts.WithTitleOpts(opts.Title{Title: "Monthly 996 index", Subtitle: rep.TimeRange.String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "8%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	line.SetXAxis(labels)
	line.AddSeries("996 index", index, itemColor(colorIndex), charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)}))
	line.AddSeries("overtime %", ratio, itemColor(colorRatio))

	volume := newBar("Commits per month", "", labels)
	volume.AddSeries("commits", barData(commits), itemColor(colorWorking))

	return renderPage(w, line, volume)
}
