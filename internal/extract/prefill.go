package extract

import (
	"strings"

	"github.com/hurttlocker/docfill/internal/patterns"
)

// Prefill returns a copy of result where every variable whose name matches
// a client field (case-insensitive, spaces and dashes folded) takes the
// client's value and is flagged AutoDetected. Empty client values are
// ignored. result itself is not modified.
func Prefill(result AnalysisResult, client map[string]string) AnalysisResult {
	out := result.Clone()
	if len(client) == 0 {
		return out
	}

	fields := make(map[string]string, len(client))
	for k, v := range client {
		if strings.TrimSpace(v) == "" {
			continue
		}
		fields[patterns.NormalizeName(k)] = v
	}

	for k, v := range out.Variables {
		value, ok := fields[patterns.NormalizeName(v.Name)]
		if !ok {
			continue
		}
		v.CurrentValue = value
		v.AutoDetected = true
		v.Source = SourceClient
		out.Variables[k] = v
	}
	return out
}
