// Package scanner normalizes machine-readable scanner output into the
// stable artifact schema. Any future tool integration follows the same
// contract: force structured output, parse, normalize, retain the raw
// payload.
package scanner

import (
	"fmt"

	nmap "github.com/Ullaakut/nmap/v3"

	"github.com/axionsec/axion/pkg/artifact"
)

// ToolName is the builtin network scanner recognized by the dispatcher.
const ToolName = "nmap"

// XMLOutputArgs force XML on stdout regardless of user-supplied flags.
var XMLOutputArgs = []string{"-oX", "-"}

// ParseXML parses an nmap XML payload into normalized assets and
// findings. Only open ports become findings; every finding is reported
// with informational severity since a port scan observes exposure, not
// exploitability. The raw XML is retained verbatim.
func ParseXML(xml []byte, target string) (*artifact.ScanResults, error) {
	var run nmap.Run
	if err := nmap.Parse(xml, &run); err != nil {
		return nil, fmt.Errorf("parse nmap XML: %w", err)
	}

	results := &artifact.ScanResults{
		Tool:     ToolName,
		Target:   target,
		Assets:   []artifact.Asset{},
		Findings: []artifact.Finding{},
		RawXML:   string(xml),
	}

	for _, host := range run.Hosts {
		addresses := make([]string, 0, len(host.Addresses))
		for _, addr := range host.Addresses {
			addresses = append(addresses, addr.Addr)
		}
		if len(addresses) == 0 {
			continue
		}
		primary := addresses[0]
		assetID := fmt.Sprintf("asset://host/%s", primary)

		hostnames := make([]string, 0, len(host.Hostnames))
		for _, hn := range host.Hostnames {
			hostnames = append(hostnames, hn.Name)
		}

		for _, port := range host.Ports {
			if port.State.State != "open" {
				continue
			}

			protocol := port.Protocol
			if protocol == "" {
				protocol = "tcp"
			}
			service := port.Service.Name

			evidence := map[string]any{
				"port":  port.ID,
				"state": port.State.State,
			}
			if service != "" {
				evidence["service"] = service
			}

			results.Findings = append(results.Findings, artifact.Finding{
				ID:       fmt.Sprintf("finding://%s/%s-%d", primary, protocol, port.ID),
				AssetID:  assetID,
				Port:     port.ID,
				Protocol: protocol,
				State:    port.State.State,
				Service:  service,
				Title:    fmt.Sprintf("%s:%d %s open", primary, port.ID, protocol),
				Description: fmt.Sprintf("Port %d %s is open on asset %s with service %q",
					port.ID, protocol, primary, service),
				Severity: "informational",
				Evidence: evidence,
			})
		}

		results.Assets = append(results.Assets, artifact.Asset{
			ID:        assetID,
			Addresses: addresses,
			Hostnames: hostnames,
			Labels:    map[string]string{},
		})
	}

	return results, nil
}
