package extract

// Status classifies a parse attempt.
type Status string

const (
	// StatusSuccess means the payload decoded without any repair.
	StatusSuccess Status = "success"
	// StatusPartial means the payload decoded after repair; some trailing
	// content may have been lost.
	StatusPartial Status = "partial"
	// StatusFailed means no strategy produced a decodable payload.
	StatusFailed Status = "failed"
)

// Diagnostic records one observation made while parsing or mapping.
type Diagnostic struct {
	Stage   string
	Message string
}

// Outcome is the sum-typed result of parsing a model response. Failed
// outcomes keep the raw text so it can be persisted as an error artifact.
type Outcome struct {
	Status      Status
	Doc         map[string]any
	Raw         string
	Diagnostics []Diagnostic
}

// Failed reports whether no payload was recovered.
func (o Outcome) Failed() bool { return o.Status == StatusFailed }
