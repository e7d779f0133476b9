package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/sre-norns/skuld/pkg/catalog"
	"github.com/sre-norns/skuld/pkg/reconcile"
	"github.com/sre-norns/skuld/pkg/runner"
)

type formatter func(any) error

func yamlFormatter(resource any) error {
	data, err := yaml.Marshal(resource)
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	return nil
}

func jsonFormatter(resource any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "\t")

	return encoder.Encode(resource)
}

// tableFormatter prints reports and catalogs for humans, anything else as yaml.
func tableFormatter(resource any) error {
	switch value := resource.(type) {
	case *runner.Outcome:
		if len(value.Labels) > 0 {
			fmt.Fprintln(color.Output, formatLabels(value.Labels))
		}
		fmt.Fprintln(color.Output, renderPasses(value.Passes))
		fmt.Fprintln(color.Output, renderReport(value.Report))
		if value.Interrupted {
			fmt.Fprintln(color.Output, color.YellowString("run timeout expired, not every page was measured"))
		}
	case *reconcile.Report:
		fmt.Fprintln(color.Output, renderReport(*value))
	case *catalog.Catalog:
		return writeCatalog(os.Stdout, *value)
	default:
		return yamlFormatter(resource)
	}

	return nil
}

func getFormatter(formatName outputFormat) (formatter, error) {
	switch formatName {
	case "table":
		return tableFormatter, nil
	case "yaml", "yml":
		return yamlFormatter, nil
	case "json":
		return jsonFormatter, nil
	}

	return nil, fmt.Errorf("unexpected output format %q", formatName)
}

func formatLabels(labels runner.Labels) string {
	var sb strings.Builder
	labels.Format(&sb)

	return sb.String()
}

func writeCatalog(w io.Writer, urls catalog.Catalog) error {
	for _, url := range urls.URLs() {
		if _, err := fmt.Fprintln(w, url); err != nil {
			return err
		}
	}

	return nil
}

func statusColor(status reconcile.Status) func(format string, a ...any) string {
	switch status {
	case reconcile.StatusCompared, reconcile.StatusEqual:
		return fmt.Sprintf
	case reconcile.StatusOutlier:
		return color.YellowString
	}

	return color.RedString
}

func renderReport(report reconcile.Report) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"URL", "Baseline, ms", "Filtering, ms", "Delta, ms", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	for _, c := range report.Comparisons {
		row := table.Row{c.URL, c.BaselineMs, "-", "-", statusColor(c.Status)("%s", c.Status)}
		if c.Status != reconcile.StatusMissing && c.Status != reconcile.StatusInvalid {
			row[2] = c.FilteringMs
			row[3] = c.DeltaMs
		}
		t.AppendRow(row)
	}

	t.AppendFooter(table.Row{
		fmt.Sprintf("%d of %d compared", report.ComparedCount, report.CatalogSize),
		report.BaselineTotalMs,
		report.FilteringTotalMs,
		report.DeltaMs,
		fmt.Sprintf("%+.2f%%", report.NormalizedDeltaPercent),
	})

	return t.Render()
}

func renderPasses(passes []runner.PassSummary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Renderer", "Attempted", "Measured", "Timed out", "Total load", "Duration"})

	for _, pass := range passes {
		t.AppendRow(table.Row{pass.Kind, pass.Attempted, pass.Measured, pass.TimedOut, pass.TotalLoad, pass.Duration})
	}

	return t.Render()
}

// verdict describes the outcome of the overhead assertion, a negative limit means none was set.
func verdict(report reconcile.Report, maxOverhead float64) (string, error) {
	if maxOverhead < 0 {
		return fmt.Sprintf("filtering overhead: %+.2f%% over %d pages", report.NormalizedDeltaPercent, report.ComparedCount), nil
	}

	if err := report.AssertMaxOverhead(maxOverhead); err != nil {
		return color.RedString("FAIL: %v", err), err
	}

	return color.GreenString("PASS: filtering overhead %+.2f%% is within %.2f%%", report.NormalizedDeltaPercent, maxOverhead), nil
}
