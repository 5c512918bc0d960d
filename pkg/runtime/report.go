package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/axionsec/axion/pkg/artifact"
	"github.com/axionsec/axion/pkg/schema"
)

var findingColumns = []string{"asset_id", "port", "protocol", "service", "state", "severity", "description"}

func (r *run) handleReport(step *schema.ReportStep) stepOutcome {
	includeNames, err := r.res.resolveList(step.Include)
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepReport, fmt.Sprintf("failed to resolve variables: %v", err)))
	}

	includes := make(map[string]any, len(includeNames))
	tables := make(map[string]artifact.Table)
	for _, include := range includeNames {
		stored, ok := r.store.Get(include)
		if !ok {
			return fromExecution(failed(step.Name, schema.StepReport, fmt.Sprintf("missing artifact '%s'", include)))
		}
		includes[include] = stored.Data
		if stored.Kind == artifact.KindScan {
			if tbl, ok := buildTableFromScan(stored.Data); ok {
				tables[include] = tbl
			}
		}
	}

	options, err := r.res.resolveMap(step.Options)
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepReport, fmt.Sprintf("failed to resolve report options: %v", err)))
	}
	title := options["title"]
	if title == "" {
		title = step.Name
	}

	generatedAt := time.Now().UTC().Format(time.RFC3339)
	label := fmt.Sprintf("report:%s", step.Name)
	data := artifact.Report{
		Target:      step.Name,
		Format:      string(step.Format),
		GeneratedAt: generatedAt,
		Includes:    includes,
		Tables:      tables,
		Options:     options,
	}

	if step.Format == schema.FormatStdout {
		return r.renderStdoutReport(step, label, data)
	}

	var contents string
	switch step.Format {
	case schema.FormatHTML:
		contents = renderHTMLReport(title, generatedAt, includes, tables)
	case schema.FormatMarkdown:
		contents = renderMarkdownReport(title, generatedAt, includes, tables)
	case schema.FormatSarif:
		contents, err = renderSarifReport(title, generatedAt, includes, options)
		if err != nil {
			return fromExecution(failed(step.Name, schema.StepReport, err.Error()))
		}
	default:
		return fromExecution(failed(step.Name, schema.StepReport, fmt.Sprintf("unsupported report format %q", step.Format)))
	}

	path, err := r.writeReportFile(step, step.Format.Extension(), contents)
	if err != nil {
		return fromExecution(failed(step.Name, schema.StepReport, fmt.Sprintf("failed to write %s report: %v", step.Format.Extension(), err)))
	}
	data.OutputPath = path

	message := fmt.Sprintf("%s report written to %s", step.Format, path)
	a := artifact.Stored{Name: label, Kind: artifact.KindReport, Path: path, Data: data}
	return withArtifact(completed(step.Name, schema.StepReport, message), a, false)
}

// renderStdoutReport prints the full report payload as pretty JSON
// followed by one rendered table per included scan.
func (r *run) renderStdoutReport(step *schema.ReportStep, label string, data artifact.Report) stepOutcome {
	masked, ok := r.maskData(data).(map[string]any)
	if ok {
		if pretty, err := json.MarshalIndent(masked, "", "  "); err == nil {
			fmt.Fprintln(r.exec.Stdout, string(pretty))
		}
	}
	for _, alias := range sortedTableKeys(data.Tables) {
		tbl := data.Tables[alias]
		if len(tbl.Rows) == 0 {
			continue
		}
		fmt.Fprintf(r.exec.Stdout, "\n[table] %s\n", alias)
		fmt.Fprintln(r.exec.Stdout, renderTable(tbl))
	}

	message := fmt.Sprintf("report generated for target '%s'. artifact: %s", step.Name, artifactPathToken)
	a := artifact.Stored{Name: label, Kind: artifact.KindReport, Data: data}
	return withArtifact(completed(step.Name, schema.StepReport, message), a, true)
}

// writeReportFile places the rendered contents at the step's output path
// (relative paths are anchored at the artifacts directory) or, when no
// output is given, under <artifacts-dir>/reports/<name>.<ext>.
func (r *run) writeReportFile(step *schema.ReportStep, extension, contents string) (string, error) {
	var path string
	if step.Output != "" {
		path = step.Output
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.exec.ArtifactsDir, path)
		}
	} else {
		path = filepath.Join(r.exec.ArtifactsDir, "reports", fmt.Sprintf("%s.%s", sanitizeLabel(step.Name), extension))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(r.secrets.Mask(contents)), 0o644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return path, nil
}

// buildTableFromScan projects a scan artifact's findings onto the fixed
// finding columns. Scan payloads without findings produce no table.
func buildTableFromScan(data any) (artifact.Table, bool) {
	payload, ok := data.(map[string]any)
	if !ok {
		// Typed payloads pass through JSON to the generic shape.
		raw, err := json.Marshal(data)
		if err != nil {
			return artifact.Table{}, false
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return artifact.Table{}, false
		}
	}
	findings, ok := payload["findings"].([]any)
	if !ok || len(findings) == 0 {
		return artifact.Table{}, false
	}

	rows := make([]map[string]any, 0, len(findings))
	for _, entry := range findings {
		finding, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		row := make(map[string]any, len(findingColumns))
		for _, column := range findingColumns {
			row[column] = finding[column]
		}
		rows = append(rows, row)
	}
	return artifact.Table{Columns: findingColumns, Rows: rows}, true
}

// cellValue renders one table cell: scalars verbatim, anything nested as
// compact JSON, null and missing as empty.
func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatCellNumber(val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func formatCellNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%v", n)
}

var tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

// renderTable renders a table artifact for terminal output.
func renderTable(tbl artifact.Table) string {
	rows := make([][]string, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		cells := make([]string, len(tbl.Columns))
		for i, column := range tbl.Columns {
			cells[i] = cellValue(row[column])
		}
		rows = append(rows, cells)
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorderStyle).
		Headers(tbl.Columns...).
		Rows(rows...).
		String()
}

func sortedTableKeys(tables map[string]artifact.Table) []string {
	keys := make([]string, 0, len(tables))
	for key := range tables {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedIncludeKeys(includes map[string]any) []string {
	keys := make([]string, 0, len(includes))
	for key := range includes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

const htmlReportStyle = `body{font-family:system-ui,-apple-system,"Segoe UI",sans-serif;background:#0f172a;color:#e2e8f0;margin:0;padding:0;}` +
	`header{background:#1e293b;padding:24px 32px;border-bottom:1px solid rgba(148,163,184,0.2);}` +
	`h1{margin:0;font-size:28px;}` +
	`h2{margin-top:32px;margin-bottom:12px;font-size:22px;}` +
	`main{padding:32px;}` +
	`section{margin-bottom:40px;background:#111c34;padding:24px;border-radius:12px;border:1px solid rgba(148,163,184,0.1);}` +
	`table{width:100%;border-collapse:collapse;margin-top:16px;font-size:14px;}` +
	`th,td{border:1px solid rgba(148,163,184,0.2);padding:8px 10px;text-align:left;}` +
	`th{background:#1e293b;font-weight:600;}` +
	`tr:nth-child(even){background:rgba(148,163,184,0.05);}` +
	`code,pre{font-family:"Fira Code",Consolas,monospace;background:#0b1120;color:#f8fafc;border-radius:8px;}` +
	`pre{padding:16px;overflow:auto;}` +
	`details{margin-top:16px;}` +
	`details>summary{cursor:pointer;color:#38bdf8;font-weight:600;}` +
	`footer{padding:16px 32px;border-top:1px solid rgba(148,163,184,0.2);color:#94a3b8;font-size:13px;}`

func renderHTMLReport(title, generatedAt string, includes map[string]any, tables map[string]artifact.Table) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\" />\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\" />\n")
	fmt.Fprintf(&b, "<title>Axion Report - %s</title>\n", escapeHTML(title))
	b.WriteString("<style>")
	b.WriteString(htmlReportStyle)
	b.WriteString("</style>\n</head>\n<body>\n")
	b.WriteString("<header>")
	fmt.Fprintf(&b, "<h1>Axion Report: %s</h1>", escapeHTML(title))
	fmt.Fprintf(&b, "<p>Generated at %s</p>", escapeHTML(generatedAt))
	b.WriteString("</header>\n<main>\n")

	for _, name := range sortedIncludeKeys(includes) {
		b.WriteString("<section>")
		fmt.Fprintf(&b, "<h2>%s</h2>", escapeHTML(name))
		if tbl, ok := tables[name]; ok {
			b.WriteString(renderHTMLTable(tbl))
		}
		if raw, err := json.MarshalIndent(includes[name], "", "  "); err == nil {
			b.WriteString("<details><summary>Raw JSON</summary>")
			b.WriteString("<pre><code>")
			b.WriteString(escapeHTML(string(raw)))
			b.WriteString("</code></pre></details>")
		}
		b.WriteString("</section>\n")
	}

	if len(includes) == 0 {
		b.WriteString("<section><p>No artifacts were included in this report.</p></section>")
	}

	b.WriteString("</main>\n<footer>Generated by axion-core</footer>\n</body>\n</html>")
	return b.String()
}

func renderHTMLTable(tbl artifact.Table) string {
	var b strings.Builder
	b.WriteString("<table>")
	b.WriteString("<thead><tr>")
	for _, column := range tbl.Columns {
		fmt.Fprintf(&b, "<th>%s</th>", escapeHTML(column))
	}
	b.WriteString("</tr></thead>")
	b.WriteString("<tbody>")
	for _, row := range tbl.Rows {
		b.WriteString("<tr>")
		for _, column := range tbl.Columns {
			fmt.Fprintf(&b, "<td>%s</td>", escapeHTML(cellValue(row[column])))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func renderMarkdownReport(title, generatedAt string, includes map[string]any, tables map[string]artifact.Table) string {
	var b strings.Builder
	b.WriteString("# Axion Report\n\n")
	fmt.Fprintf(&b, "**Title:** %s\n\n", title)
	fmt.Fprintf(&b, "_Generated at %s_\n\n", generatedAt)

	if len(includes) == 0 {
		b.WriteString("No artifacts were included in this report.\n")
		return b.String()
	}

	for _, name := range sortedIncludeKeys(includes) {
		fmt.Fprintf(&b, "## %s\n\n", name)
		if tbl, ok := tables[name]; ok && len(tbl.Columns) > 0 {
			b.WriteString(renderMarkdownTable(tbl))
			b.WriteString("\n")
		}
		if raw, err := json.MarshalIndent(includes[name], "", "  "); err == nil {
			b.WriteString("```json\n")
			b.Write(raw)
			b.WriteString("\n```\n\n")
		}
	}

	return b.String()
}

func renderMarkdownTable(tbl artifact.Table) string {
	var b strings.Builder
	b.WriteString("|")
	for _, column := range tbl.Columns {
		fmt.Fprintf(&b, " %s |", sanitizeMarkdownCell(column))
	}
	b.WriteString("\n|")
	for range tbl.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range tbl.Rows {
		b.WriteString("|")
		for _, column := range tbl.Columns {
			fmt.Fprintf(&b, " %s |", sanitizeMarkdownCell(cellValue(row[column])))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sanitizeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "\n", "<br>")
	return strings.ReplaceAll(value, "|", "\\|")
}

func escapeHTML(input string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(input)
}
