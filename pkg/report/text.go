package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/code996/pkg/analysis"
	"github.com/Sumatoshi-tech/code996/pkg/overtime"
	"github.com/Sumatoshi-tech/code996/pkg/ranking"
	"github.com/Sumatoshi-tech/code996/pkg/timerange"
)

// Index level thresholds.
const (
	levelNormal   = 21.0
	levelOvertime = 48.0
	levelHeavy    = 100.0
)

const (
	histogramWidth = 40
	histogramBlock = "█"
)

// Level describes an overtime index in words.
func Level(index float64) string {
	switch {
	case index < 0:
		return "under-saturated"
	case index < levelNormal:
		return "normal hours"
	case index < levelOvertime:
		return "some overtime"
	case index < levelHeavy:
		return "heavy overtime"
	default:
		return "996 or worse"
	}
}

type palette struct {
	good, warn, bad, muted, title *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		good:  color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		bad:   color.New(color.FgRed, color.Bold),
		muted: color.New(color.FgHiBlack),
		title: color.New(color.FgCyan, color.Bold),
	}

	if noColor {
		for _, c := range []*color.Color{p.good, p.warn, p.bad, p.muted, p.title} {
			c.DisableColor()
		}
	}

	return p
}

func (p palette) index(index float64, display string) string {
	switch {
	case index < levelNormal:
		return p.good.Sprint(display)
	case index < levelOvertime:
		return p.warn.Sprint(display)
	default:
		return p.bad.Sprint(display)
	}
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

func windowLine(tr timerange.TimeRange) string {
	line := fmt.Sprintf("%s (%s)", tr, tr.Mode)
	if tr.Note != "" {
		line += "\n  " + tr.Note
	}

	return line
}

func (r *Renderer) textRepo(w io.Writer, rep *analysis.RepoReport) error {
	var b strings.Builder

	b.WriteString(r.palette.title.Sprint("code996 report") + "\n")
	fmt.Fprintf(&b, "Window:         %s\n", windowLine(rep.TimeRange))

	if !rep.FirstCommit.IsZero() && !rep.LastCommit.IsZero() {
		fmt.Fprintf(&b, "History:        %s .. %s (last commit %s)\n",
			rep.FirstCommit.Format(time.DateOnly), rep.LastCommit.Format(time.DateOnly),
			humanize.Time(rep.LastCommit))
	}

	if rep.Author != "" {
		fmt.Fprintf(&b, "Author:         %s\n", rep.Author)
	}

	fmt.Fprintf(&b, "Commits:        %s\n", humanize.Comma(int64(rep.Data.TotalCommits)))
	fmt.Fprintf(&b, "996 index:      %s (%s)\n",
		r.palette.index(rep.Result.Index996, rep.Result.Index996Display), Level(rep.Result.Index996))
	fmt.Fprintf(&b, "Overtime ratio: %.0f%%\n\n", rep.Result.OvertimeRatioPercent)

	_, err := io.WriteString(w, b.String())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	buckets := newTable(w)
	buckets.AppendHeader(table.Row{"Partition", "Commits", "Share"})
	appendBucketRows(buckets, rep.Data.Buckets)
	buckets.Render()

	_, err = io.WriteString(w, "\n"+r.hourHistogram(rep.Data.HourHistogram))
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func appendBucketRows(tbl table.Writer, b overtime.BucketCounts) {
	total := b.Total()

	share := func(n int) string {
		if total == 0 {
			return "-"
		}

		return fmt.Sprintf("%.1f%%", float64(n)*100/float64(total))
	}

	tbl.AppendRow(table.Row{"Working hours", b.WorkingHour, share(b.WorkingHour)})
	tbl.AppendRow(table.Row{"Overtime", b.OvertimeHour, share(b.OvertimeHour)})
	tbl.AppendSeparator()
	tbl.AppendRow(table.Row{"Weekday", b.Weekday, share(b.Weekday)})
	tbl.AppendRow(table.Row{"Weekend", b.Weekend, share(b.Weekend)})
}

func (r *Renderer) hourHistogram(hist [24]int) string {
	peak := 0
	for _, n := range hist {
		peak = max(peak, n)
	}

	var b strings.Builder

	b.WriteString("Commits by hour\n")

	for hour, n := range hist {
		width := 0
		if peak > 0 {
			width = (n*histogramWidth + peak - 1) / peak
		}

		fmt.Fprintf(&b, "  %02d:00 %s %d\n", hour, r.palette.muted.Sprint(strings.Repeat(histogramBlock, width)), n)
	}

	return b.String()
}

func (r *Renderer) textRanking(w io.Writer, res *ranking.AuthorRankingResult) error {
	header := fmt.Sprintf("%s\nWindow: %s\nSorted by %s, showing %d of %d authors\n\n",
		r.palette.title.Sprint("code996 author ranking"), windowLine(res.TimeRange),
		res.SortBy, len(res.Authors), res.TotalAuthors)

	_, err := io.WriteString(w, header)
	if err != nil {
		return fmt.Errorf("write ranking: %w", err)
	}

	showScore := res.SortBy == ranking.SortByScore

	headerRow := table.Row{"#", "Author", "Email", "Commits", "996 index", "Overtime", "Overtime commits", "Weekend"}
	if showScore {
		headerRow = append(headerRow, "Score")
	}

	tbl := newTable(w)
	tbl.AppendHeader(headerRow)
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})

	for i, author := range res.Authors {
		row := table.Row{
			i + 1,
			author.Identity.Name,
			author.Identity.Email,
			humanize.Comma(int64(author.TotalCommits)),
			r.palette.index(author.Index996, overtime.FormatIndex(author.Index996)),
			fmt.Sprintf("%.0f%%", author.OvertimeRatioPercent),
			author.OvertimeCommits,
			author.WeekendCommits,
		}

		if showScore {
			row = append(row, fmt.Sprintf("%.1f", ranking.Score(author)))
		}

		tbl.AppendRow(row)
	}

	tbl.Render()

	return nil
}

func (r *Renderer) textTrend(w io.Writer, rep *analysis.TrendReport) error {
	header := fmt.Sprintf("%s\nWindow: %s\n", r.palette.title.Sprint("code996 monthly trend"), windowLine(rep.TimeRange))
	if rep.Author != "" {
		header += "Author: " + rep.Author + "\n"
	}

	_, err := io.WriteString(w, header+"\n")
	if err != nil {
		return fmt.Errorf("write trend: %w", err)
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Month", "Commits", "996 index", "Overtime", "Level"})

	for _, point := range rep.Points {
		if point.Insufficient {
			tbl.AppendRow(table.Row{
				point.Month.Format("2006-01"), point.Commits,
				r.palette.muted.Sprint("-"), r.palette.muted.Sprint("-"), r.palette.muted.Sprint("too few commits"),
			})

			continue
		}

		tbl.AppendRow(table.Row{
			point.Month.Format("2006-01"),
			point.Commits,
			r.palette.index(point.Result.Index996, point.Result.Index996Display),
			fmt.Sprintf("%.0f%%", point.Result.OvertimeRatioPercent),
			Level(point.Result.Index996),
		})
	}

	tbl.Render()

	return nil
}
