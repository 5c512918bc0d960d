// Package artifact defines the typed, JSON-serializable records produced
// by scenario steps. Artifact names form a single namespace shared with
// report include clauses and output renames; a later write under the same
// name supersedes the earlier one.
package artifact

// Kind tags the artifact variant.
type Kind string

const (
	KindAssetGroup Kind = "asset_group"
	KindScan       Kind = "scan"
	KindScript     Kind = "script"
	KindReport     Kind = "report"
)

// Stored is one named artifact in the run's artifact set. Path is empty
// when the artifact was never mirrored to disk. Data holds the decoded
// JSON payload of the concrete artifact type.
type Stored struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Path string `json:"path,omitempty"`
	Data any    `json:"data"`
}

// Asset is one host discovered by a scan.
type Asset struct {
	ID        string            `json:"id"`
	Addresses []string          `json:"addresses"`
	Hostnames []string          `json:"hostnames"`
	Labels    map[string]string `json:"labels"`
}

// Finding is one structured observation inside a scan artifact. The ID is
// derived from (asset, port, protocol) so reruns deduplicate.
type Finding struct {
	ID          string         `json:"id"`
	AssetID     string         `json:"asset_id"`
	Port        uint16         `json:"port"`
	Protocol    string         `json:"protocol"`
	State       string         `json:"state"`
	Service     string         `json:"service,omitempty"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Severity    string         `json:"severity"`
	Evidence    map[string]any `json:"evidence"`
}

// ScanResults is the normalized outcome of a specialized scan: parsed
// assets and findings plus the raw XML retained verbatim for
// reproducibility.
type ScanResults struct {
	Tool     string    `json:"tool"`
	Target   string    `json:"target"`
	Assets   []Asset   `json:"assets"`
	Findings []Finding `json:"findings"`
	RawXML   string    `json:"raw_xml"`
}

// Invocation is the generic record of one external process run. Stored
// for every scan that is not specialized and for every script, whether or
// not the process succeeded.
type Invocation struct {
	Tool       string            `json:"tool"`
	Params     map[string]string `json:"params"`
	Invocation []string          `json:"invocation"`
	Stdout     string            `json:"stdout"`
	Stderr     string            `json:"stderr"`
	ExitCode   *int              `json:"exit_code"`
	StartedAt  string            `json:"started_at"`
	DurationMS int64             `json:"duration_ms"`
}

// Script records one script execution. ExitCode is nil when the process
// could not be spawned at all.
type Script struct {
	Name       string   `json:"name"`
	Command    []string `json:"command"`
	Stdout     string   `json:"stdout"`
	Stderr     string   `json:"stderr"`
	ExitCode   *int     `json:"exit_code"`
	StartedAt  string   `json:"started_at"`
	DurationMS int64    `json:"duration_ms"`
}

// AssetGroup is the stored form of an asset group declaration.
type AssetGroup struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
}

// Table is a columns+rows projection of a structured artifact, used for
// tabular rendering across tools.
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Report records one rendered report, including every resolved artifact
// payload so the report is self-contained.
type Report struct {
	Target      string            `json:"target"`
	Format      string            `json:"format"`
	GeneratedAt string            `json:"generated_at"`
	Includes    map[string]any    `json:"includes"`
	Tables      map[string]Table  `json:"tables"`
	OutputPath  string            `json:"output_path,omitempty"`
	Options     map[string]string `json:"options"`
}
