package formatter

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/tasks"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// maxCell bounds long titles and reasons in table output.
const maxCell = 60

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxCell,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// RenderSummary renders the counts of a run followed by its failed items, if any.
func RenderSummary(result *tasks.RunResult) string {
	counts := renderTable(
		[]string{"Queued", "Delivered", "Skipped", "Failed", "Size", "Duration"},
		[][]string{{
			fmt.Sprint(result.Queued),
			fmt.Sprint(result.Delivered),
			fmt.Sprint(result.Skipped),
			fmt.Sprint(result.Failed),
			formatBytes(result.Bytes),
			result.Duration().Round(time.Second).String(),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
	if result.Failed == 0 {
		return counts
	}

	var rows [][]string
	for _, o := range result.Outcomes {
		if o.Status != models.StatusFailed {
			continue
		}
		rows = append(rows, []string{string(o.Entry.ID), o.Entry.Kind.String(), o.Title, tasks.Cause(o.Err), o.Reason()})
	}
	failures := renderTable([]string{"Item", "Kind", "Title", "Cause", "Reason"}, rows, nil)
	return counts + "\n" + failures
}

// RenderHistory renders ledger rows newest first.
func RenderHistory(deliveries []*models.Delivery) string {
	if len(deliveries) == 0 {
		return "No deliveries recorded."
	}
	rows := make([][]string, 0, len(deliveries))
	for _, d := range deliveries {
		rows = append(rows, []string{
			fmt.Sprint(d.Sequence()),
			humanize.Time(d.CreatedAt()),
			string(d.ItemID()),
			d.Kind().String(),
			d.Title(),
			string(d.Status()),
			formatBytes(d.Bytes()),
			d.Reason(),
		})
	}
	return renderTable(
		[]string{"#", "Recorded", "Item", "Kind", "Title", "Status", "Size", "Reason"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

// RenderRuns renders run rows newest first.
func RenderRuns(runs []*models.Run) string {
	if len(runs) == 0 {
		return "No runs recorded."
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		finished := "running"
		if r.FinishedAt() != nil {
			finished = r.Duration().Round(time.Second).String()
		}
		rows = append(rows, []string{
			fmt.Sprint(r.Sequence()),
			humanize.Time(r.StartedAt()),
			r.Mode(),
			fmt.Sprint(r.Queued()),
			fmt.Sprint(r.Delivered()),
			fmt.Sprint(r.Skipped()),
			fmt.Sprint(r.Failed()),
			finished,
		})
	}
	return renderTable(
		[]string{"#", "Started", "Mode", "Queued", "Delivered", "Skipped", "Failed", "Duration"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}
