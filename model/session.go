package model

import (
	"path/filepath"
	"strings"
)

// Accepted document media types
const (
	MediaTypePDF  = "application/pdf"
	MediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeText = "text/plain"
)

var mediaTypesByExt = map[string]string{
	".pdf":  MediaTypePDF,
	".docx": MediaTypeDOCX,
	".txt":  MediaTypeText,
}

// MediaTypeForFilename returns the declared media type for a filename based on
// its extension, or "" when the extension is not one we know.
func MediaTypeForFilename(name string) string {
	return mediaTypesByExt[strings.ToLower(filepath.Ext(name))]
}

// Document describes the file selected for analysis.
type Document struct {
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	MediaType string `json:"media_type"`
}

// State is a lifecycle state of an analysis session.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateUploading  State = "uploading"
	StateAnalyzing  State = "analyzing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// InFlight reports whether a submission is being processed in this state.
func (s State) InFlight() bool {
	return s == StateValidating || s == StateUploading || s == StateAnalyzing
}

// TypeCount is the number of clauses of one type.
type TypeCount struct {
	Type  ClauseType `json:"type"`
	Count int        `json:"count"`
}

// RiskCount is the number of clauses in one risk bucket.
type RiskCount struct {
	Risk  RiskLevel `json:"risk"`
	Count int       `json:"count"`
}

// AggregateView holds the statistics derived from a clause collection.
type AggregateView struct {
	CountsByType []TypeCount       `json:"counts_by_type"`
	CountsByRisk map[RiskLevel]int `json:"counts_by_risk"`
	Total        int               `json:"total"`
	HighRisk     int               `json:"high_risk"`
	UniqueTypes  int               `json:"unique_types"`
}

// RiskBuckets returns the risk counts in Low, Medium, High, Unknown order.
func (v AggregateView) RiskBuckets() []RiskCount {
	buckets := make([]RiskCount, 0, len(RiskLevels))
	for _, level := range RiskLevels {
		buckets = append(buckets, RiskCount{Risk: level, Count: v.CountsByRisk[level]})
	}
	return buckets
}
