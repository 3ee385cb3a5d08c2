package extract

import (
	"encoding/json"
)

// Parse recovers the extraction payload from free-form model output. The
// strategies run in order — extract, character-walk repair, aggressive
// repair — and the first decodable document wins.
func Parse(raw string) Outcome {
	o := Outcome{Raw: raw}
	body, ok := ExtractJSON(raw)
	if !ok {
		o.Status = StatusFailed
		o.Diagnostics = append(o.Diagnostics, Diagnostic{Stage: "extract", Message: "no JSON object found in response"})
		return o
	}

	repaired := RepairJSON(body)
	var doc map[string]any
	if err := json.Unmarshal([]byte(repaired), &doc); err == nil {
		o.Doc = doc
		if repaired == body {
			o.Status = StatusSuccess
		} else {
			o.Status = StatusPartial
			o.Diagnostics = append(o.Diagnostics, Diagnostic{Stage: "repair", Message: "payload required first-pass repair"})
		}
		return o
	}

	aggressive := AggressiveRepair(repaired)
	if err := json.Unmarshal([]byte(aggressive), &doc); err == nil {
		o.Doc = doc
		o.Status = StatusPartial
		o.Diagnostics = append(o.Diagnostics, Diagnostic{Stage: "repair", Message: "payload required aggressive repair"})
		return o
	} else {
		o.Status = StatusFailed
		o.Diagnostics = append(o.Diagnostics, Diagnostic{Stage: "decode", Message: err.Error()})
	}
	return o
}
