package sandbox

import (
	"fmt"

	"cardaudit/internal/claims"
	"cardaudit/internal/tools"
)

// coerceResult converts a program's Verify() return value into an
// ExecutionResult. The contract is a map with "found", "summary", and
// "evidence" keys; missing keys default rather than fail, but a non-map
// return is an execution failure.
func coerceResult(claimID string, raw any) (claims.ExecutionResult, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return claims.ExecutionResult{}, fmt.Errorf(
			"Verify() must return map[string]any, got %T", raw)
	}

	result := claims.ExecutionResult{ClaimID: claimID}
	if found, ok := m["found"].(bool); ok {
		result.Found = found
	}
	if summary, ok := m["summary"].(string); ok {
		result.Summary = summary
	}

	for _, key := range []string{"evidence", "evidence_details"} {
		items, ok := m[key]
		if !ok {
			continue
		}
		details, err := coerceEvidence(items)
		if err != nil {
			return claims.ExecutionResult{}, err
		}
		result.EvidenceDetails = append(result.EvidenceDetails, details...)
	}
	result.EvidenceCount = len(result.EvidenceDetails)

	// A program that found evidence but forgot the flag still counts.
	if result.EvidenceCount > 0 {
		result.Found = true
	}
	return result, nil
}

func coerceEvidence(items any) ([]claims.EvidenceDetail, error) {
	switch v := items.(type) {
	case []tools.Match:
		details := make([]claims.EvidenceDetail, 0, len(v))
		for _, m := range v {
			details = append(details, matchDetail(m))
		}
		return details, nil
	case []any:
		var details []claims.EvidenceDetail
		for _, item := range v {
			switch e := item.(type) {
			case tools.Match:
				details = append(details, matchDetail(e))
			case map[string]any:
				details = append(details, mapDetail(e))
			case string:
				details = append(details, claims.EvidenceDetail{Text: e})
			default:
				return nil, fmt.Errorf("unsupported evidence item type %T", item)
			}
		}
		return details, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported evidence collection type %T", items)
	}
}

func matchDetail(m tools.Match) claims.EvidenceDetail {
	d := claims.EvidenceDetail{Source: m.Source, Kind: m.Kind, Text: m.Text}
	if m.CellNumber > 0 {
		n := m.CellNumber
		d.CellNumber = &n
	}
	if m.Line > 0 && d.Source != "" {
		d.Source = fmt.Sprintf("%s:%d", d.Source, m.Line)
	}
	return d
}

func mapDetail(m map[string]any) claims.EvidenceDetail {
	d := claims.EvidenceDetail{}
	if s, ok := m["source"].(string); ok {
		d.Source = s
	}
	if s, ok := m["kind"].(string); ok {
		d.Kind = s
	}
	if s, ok := m["text"].(string); ok {
		d.Text = s
	}
	switch n := m["cell_number"].(type) {
	case int:
		if n > 0 {
			d.CellNumber = &n
		}
	case float64:
		if n > 0 {
			v := int(n)
			d.CellNumber = &v
		}
	}
	return d
}
