// Package markdown renders the hospital of interest's ranking summary.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"egresos/domain/discharge"
	"egresos/domain/metrics"
	"egresos/domain/run"
	"egresos/domain/strata"
	"egresos/internal/profiling"
	"egresos/internal/ranking"
	"egresos/internal/report"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Labeler resolves a diagnosis code to a readable label.
type Labeler interface {
	Label(diagnosis string) string
}

// Summary is the input of the renderers. Labels, Stays and Manifest are optional.
type Summary struct {
	Table     *report.WideTable
	Hospital  discharge.HospitalCode
	Variables []metrics.Variable
	Labels    Labeler
	Stays     []profiling.StaySummary
	Manifest  *run.Manifest
}

// RenderMarkdown writes one table per ranked variable with the hospital's
// rank and share in every stratum.
func RenderMarkdown(s Summary) []byte {
	var b bytes.Buffer
	t := s.Table
	rows := t.RowsOf(s.Hospital)

	fmt.Fprintf(&b, "# Discharge ranking: %s\n\n", hospitalTitle(t, rows, s.Hospital))

	if m := s.Manifest; m != nil {
		fmt.Fprintf(&b, "- Run: `%s`\n", m.RunID)
		fmt.Fprintf(&b, "- Reference cohort: %s\n", m.ReferenceVersion)
		fmt.Fprintf(&b, "- Discharges read: %d, aggregated rows: %d\n", m.InputRows, m.OutputRows)
		fmt.Fprintf(&b, "- Fingerprint: `%s`\n\n", m.Fingerprint.Fingerprint)

		b.WriteString("| Stratum | Hospitals |\n|---|---:|\n")
		for _, name := range strata.Names() {
			if n, ok := m.StrataSizes[string(name)]; ok {
				fmt.Fprintf(&b, "| %s | %d |\n", name, n)
			}
		}
		b.WriteString("\n")
	}

	if len(rows) == 0 {
		b.WriteString("The hospital has no aggregated rows.\n")
		return b.Bytes()
	}

	yearPos := discharge.IndexOf(t.Keys, discharge.FieldYear)
	diagPos := discharge.IndexOf(t.Keys, discharge.FieldDiagnosis)

	for _, v := range s.Variables {
		cols := rankColumns(t, v)
		if len(cols) == 0 {
			continue
		}

		fmt.Fprintf(&b, "## %s\n\n", v)
		header := []string{"Year", "Diagnosis", string(v)}
		align := []string{"---", "---", "---:"}
		for _, c := range cols {
			header = append(header, string(c.Stratum))
			align = append(align, "---:")
		}
		fmt.Fprintf(&b, "| %s |\n|%s|\n", strings.Join(header, " | "), strings.Join(align, "|"))

		for _, i := range rows {
			row := &t.Rows[i]
			cells := []string{keyCell(row.Key, yearPos), diagnosisCell(row.Key, diagPos, s.Labels)}
			if val, ok := row.Variable(v); ok {
				cells = append(cells, formatNumber(val))
			} else {
				cells = append(cells, "n/a")
			}
			for _, c := range cols {
				cells = append(cells, rankCell(t, i, c))
			}
			fmt.Fprintf(&b, "| %s |\n", strings.Join(cells, " | "))
		}
		b.WriteString("\n")
	}

	if len(s.Stays) > 0 {
		b.WriteString("## Length of stay\n\n")
		b.WriteString("| Year | Diagnosis | n | Median | P10 | P90 | Mean | Std dev | National median |\n")
		b.WriteString("|---|---|---:|---:|---:|---:|---:|---:|---:|\n")
		for _, st := range s.Stays {
			fmt.Fprintf(&b, "| %d | %s | %d | %s | %s | %s | %s | %s | %s |\n",
				st.Year, label(st.Diagnosis, s.Labels), st.Count,
				formatNumber(st.Median), formatNumber(st.P10), formatNumber(st.P90),
				formatNumber(st.Mean), formatNumber(st.StdDev), formatNumber(st.NationalMedian))
		}
		b.WriteString("\n")
	}

	return b.Bytes()
}

// RenderHTML renders the Markdown summary as a standalone HTML page.
func RenderHTML(s Summary) []byte {
	md := RenderMarkdown(s)

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: fmt.Sprintf("Discharge ranking %d", s.Hospital),
	})
	return markdown.ToHTML(md, p, renderer)
}

func rankColumns(t *report.WideTable, v metrics.Variable) []report.Column {
	var out []report.Column
	for _, name := range strata.Names() {
		for _, c := range t.Columns {
			if c.Kind == report.KindRank && c.Variable == v && c.Stratum == name {
				out = append(out, c)
			}
		}
	}
	return out
}

// rankCell renders "rank (share%)", or "-" outside the stratum.
func rankCell(t *report.WideTable, row int, rank report.Column) string {
	r, _ := t.Cell(row, rank.Name)
	if r == nil {
		return "-"
	}
	pct, _ := t.Cell(row, ranking.ColumnName(string(report.KindPct), rank.Stratum, rank.Variable))
	if pct == nil {
		return fmt.Sprintf("%d", int(*r))
	}
	return fmt.Sprintf("%d (%.1f%%)", int(*r), *pct*100)
}

func hospitalTitle(t *report.WideTable, rows []int, hospital discharge.HospitalCode) string {
	namePos := discharge.IndexOf(t.Keys, discharge.FieldHospitalName)
	if namePos < 0 || len(rows) == 0 {
		return fmt.Sprintf("%d", hospital)
	}
	return fmt.Sprintf("%s (%d)", t.Rows[rows[0]].Key[namePos], hospital)
}

func keyCell(k discharge.Key, pos int) string {
	if pos < 0 {
		return ""
	}
	return k[pos].String()
}

func diagnosisCell(k discharge.Key, pos int, labels Labeler) string {
	if pos < 0 {
		return ""
	}
	return label(k[pos].String(), labels)
}

func label(code string, labels Labeler) string {
	if labels == nil {
		return code
	}
	if l := labels.Label(code); l != "" && l != code {
		return fmt.Sprintf("%s %s", code, escape(l))
	}
	return code
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
