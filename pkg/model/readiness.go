package model

import (
	"fmt"
	"strings"
)

// Legacy per-source codes reported by the readiness probe's exit status.
// Each source owns one decimal digit, so the sum stays unambiguous.
const (
	CodePrecipMissing     = 1
	CodeAnalysisMissing   = 10
	CodeCompletionMissing = 100
)

// Source names used in logs and notifications.
const (
	SourcePrecip     = "precip-correction"
	SourceAnalysis   = "analysis-state"
	SourceCompletion = "completion-record"
)

// ReadinessStatus records which upstream data sources are missing for a cycle.
type ReadinessStatus struct {
	PrecipMissing     bool `json:"precip_missing"`
	AnalysisMissing   bool `json:"analysis_missing"`
	CompletionMissing bool `json:"completion_missing"`
}

// Ready is true when no source is missing.
func (s ReadinessStatus) Ready() bool {
	return !s.PrecipMissing && !s.AnalysisMissing && !s.CompletionMissing
}

// Code encodes the status into the probe's integer exit-code form.
func (s ReadinessStatus) Code() int {
	code := 0
	if s.PrecipMissing {
		code += CodePrecipMissing
	}
	if s.AnalysisMissing {
		code += CodeAnalysisMissing
	}
	if s.CompletionMissing {
		code += CodeCompletionMissing
	}
	return code
}

// Missing returns the names of the missing sources in code order.
func (s ReadinessStatus) Missing() []string {
	var names []string
	if s.PrecipMissing {
		names = append(names, SourcePrecip)
	}
	if s.AnalysisMissing {
		names = append(names, SourceAnalysis)
	}
	if s.CompletionMissing {
		names = append(names, SourceCompletion)
	}
	return names
}

// String renders the status for logs, e.g. "ready" or "missing=analysis-state,completion-record".
func (s ReadinessStatus) String() string {
	if s.Ready() {
		return "ready"
	}
	return "missing=" + strings.Join(s.Missing(), ",")
}

// DecodeReadiness splits a probe exit code into per-source flags.
// Only sums of {1, 10, 100} are accepted; anything else means the probe
// itself misbehaved and is returned as an error.
func DecodeReadiness(code int) (ReadinessStatus, error) {
	if code < 0 || code > CodePrecipMissing+CodeAnalysisMissing+CodeCompletionMissing {
		return ReadinessStatus{}, fmt.Errorf("unrecognized readiness code %d", code)
	}
	ones := code % 10
	tens := (code / 10) % 10
	hundreds := code / 100
	if ones > 1 || tens > 1 || hundreds > 1 {
		return ReadinessStatus{}, fmt.Errorf("unrecognized readiness code %d", code)
	}
	return ReadinessStatus{
		PrecipMissing:     ones == 1,
		AnalysisMissing:   tens == 1,
		CompletionMissing: hundreds == 1,
	}, nil
}
