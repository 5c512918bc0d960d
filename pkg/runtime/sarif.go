package runtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/axionsec/axion/pkg/artifact"
)

const (
	sarifVersion   = "2.1.0"
	sarifSchemaURI = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifToolName  = "Axion"
)

// severityRank orders severity labels so a threshold option can filter
// results. Unknown labels rank lowest.
func severityRank(label string) int {
	switch strings.ToLower(label) {
	case "critical":
		return 4
	case "high":
		return 3
	case "medium", "moderate":
		return 2
	case "low":
		return 1
	}
	return 0
}

// sarifLevel maps a severity label onto the SARIF result level.
func sarifLevel(label string) string {
	switch strings.ToLower(label) {
	case "critical", "high":
		return "error"
	case "medium", "moderate":
		return "warning"
	}
	return "note"
}

// renderSarifReport converts every included scan artifact into SARIF
// results. Non-scan includes are skipped; they have no findings to map.
func renderSarifReport(title, generatedAt string, includes map[string]any, options map[string]string) (string, error) {
	toolName := options["tool_name"]
	if toolName == "" {
		toolName = options["tool"]
	}
	if toolName == "" {
		toolName = sarifToolName
	}
	minRank := 0
	if threshold, ok := options["severity_threshold"]; ok {
		minRank = severityRank(threshold)
	}

	var results []map[string]any
	rules := make(map[string]map[string]any)
	var ruleOrder []string
	var artifacts []map[string]any
	seenAssets := make(map[string]bool)

	for _, name := range sortedIncludeKeys(includes) {
		scan, ok := decodeScanResults(includes[name])
		if !ok {
			continue
		}

		if _, exists := rules[scan.Tool]; !exists {
			rules[scan.Tool] = map[string]any{
				"id":   scan.Tool,
				"name": scan.Tool,
				"shortDescription": map[string]any{
					"text": fmt.Sprintf("Findings emitted by %s", scan.Tool),
				},
			}
			ruleOrder = append(ruleOrder, scan.Tool)
		}

		for _, finding := range scan.Findings {
			if severityRank(finding.Severity) < minRank {
				continue
			}
			if !seenAssets[finding.AssetID] {
				seenAssets[finding.AssetID] = true
				artifacts = append(artifacts, map[string]any{
					"location": map[string]any{"uri": finding.AssetID},
				})
			}
			results = append(results, map[string]any{
				"ruleId": scan.Tool,
				"level":  sarifLevel(finding.Severity),
				"message": map[string]any{
					"text": finding.Title,
				},
				"locations": []map[string]any{{
					"physicalLocation": map[string]any{
						"artifactLocation": map[string]any{"uri": finding.AssetID},
					},
				}},
				"properties": map[string]any{
					"severity":    finding.Severity,
					"service":     finding.Service,
					"state":       finding.State,
					"protocol":    finding.Protocol,
					"port":        finding.Port,
					"target":      scan.Target,
					"description": finding.Description,
					"evidence":    finding.Evidence,
				},
			})
		}
	}

	driver := map[string]any{"name": toolName}
	if version := options["tool_version"]; version != "" {
		driver["version"] = version
	}
	if uri := options["tool_uri"]; uri != "" {
		driver["informationUri"] = uri
	}
	if len(ruleOrder) > 0 {
		ordered := make([]map[string]any, len(ruleOrder))
		for i, id := range ruleOrder {
			ordered[i] = rules[id]
		}
		driver["rules"] = ordered
	}

	if results == nil {
		results = []map[string]any{}
	}
	sarifRun := map[string]any{
		"tool":    map[string]any{"driver": driver},
		"results": results,
		"invocations": []map[string]any{{
			"executionSuccessful": true,
			"endTimeUtc":          generatedAt,
		}},
		"automationDetails": map[string]any{
			"id": fmt.Sprintf("axion::%s", title),
			"description": map[string]any{
				"text": fmt.Sprintf("Axion SARIF report %s", title),
			},
		},
	}
	if len(artifacts) > 0 {
		sarifRun["artifacts"] = artifacts
	}

	document := map[string]any{
		"version": sarifVersion,
		"$schema": sarifSchemaURI,
		"runs":    []map[string]any{sarifRun},
	}

	payload, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode SARIF document: %w", err)
	}
	return string(payload), nil
}

// decodeScanResults coerces an artifact payload back into scan results.
// Payloads that are not scan-shaped report false.
func decodeScanResults(data any) (artifact.ScanResults, bool) {
	raw, err := json.Marshal(data)
	if err != nil {
		return artifact.ScanResults{}, false
	}
	var scan artifact.ScanResults
	if err := json.Unmarshal(raw, &scan); err != nil {
		return artifact.ScanResults{}, false
	}
	if scan.Tool == "" || scan.Findings == nil {
		return artifact.ScanResults{}, false
	}
	return scan, true
}
