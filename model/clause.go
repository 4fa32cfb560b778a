package model

import (
	"strings"
)

// RiskLevel is the risk bucket assigned to a clause.
type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskUnknown RiskLevel = "Unknown"
)

// RiskLevels lists every bucket in display order.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskUnknown}

// ClauseType is the canonical category of a clause.
type ClauseType string

const (
	TypeIP              ClauseType = "IP"
	TypeTermination     ClauseType = "Termination"
	TypeConfidentiality ClauseType = "Confidentiality"
	TypePayment         ClauseType = "Payment"
	TypeLiability       ClauseType = "Liability"
	TypeWarranty        ClauseType = "Warranty"
	TypeIndemnification ClauseType = "Indemnification"
	TypeForceMajeure    ClauseType = "Force Majeure"
	TypeGoverningLaw    ClauseType = "Governing Law"
	TypeOther           ClauseType = "Other"
)

// Clause is one analyzed contract excerpt. JSON field names are the canonical
// form sent back to the query service.
type Clause struct {
	Text        string     `json:"text"`
	Type        ClauseType `json:"clauseType"`
	Risk        RiskLevel  `json:"riskLevel"`
	Explanation string     `json:"explanation"`
	Concerns    []string   `json:"concerns"`
}

// Clone returns a deep copy of the clause.
func (c Clause) Clone() Clause {
	concerns := make([]string, len(c.Concerns))
	copy(concerns, c.Concerns)
	c.Concerns = concerns
	return c
}

// CloneClauses copies a clause collection, preserving order.
func CloneClauses(clauses []Clause) []Clause {
	out := make([]Clause, len(clauses))
	for i, c := range clauses {
		out[i] = c.Clone()
	}
	return out
}

var riskAliases = map[string]RiskLevel{
	"low":      RiskLow,
	"medium":   RiskMedium,
	"moderate": RiskMedium,
	"high":     RiskHigh,
}

// ParseRiskLevel maps a service-provided risk label onto a RiskLevel.
// Anything it does not recognize becomes RiskUnknown.
func ParseRiskLevel(s string) RiskLevel {
	key := labelKey(s)
	key = strings.TrimSuffix(key, " risk")
	if level, ok := riskAliases[key]; ok {
		return level
	}
	return RiskUnknown
}

// Synonyms observed in analysis output, keyed by labelKey form.
var typeAliases = map[string]ClauseType{
	"ip":                           TypeIP,
	"ip ownership":                 TypeIP,
	"intellectual property":        TypeIP,
	"intellectual property rights": TypeIP,
	"termination":                  TypeTermination,
	"term":                         TypeTermination,
	"cancellation":                 TypeTermination,
	"confidentiality":              TypeConfidentiality,
	"confidential":                 TypeConfidentiality,
	"nda":                          TypeConfidentiality,
	"non disclosure":               TypeConfidentiality,
	"non disclosure agreement":     TypeConfidentiality,
	"payment":                      TypePayment,
	"payments":                     TypePayment,
	"payment terms":                TypePayment,
	"fee":                          TypePayment,
	"fees":                         TypePayment,
	"liability":                    TypeLiability,
	"limitation of liability":      TypeLiability,
	"limitations of liability":     TypeLiability,
	"warranty":                     TypeWarranty,
	"warranties":                   TypeWarranty,
	"indemnification":              TypeIndemnification,
	"indemnity":                    TypeIndemnification,
	"indemnities":                  TypeIndemnification,
	"force majeure":                TypeForceMajeure,
	"governing law":                TypeGoverningLaw,
	"jurisdiction":                 TypeGoverningLaw,
	"governance":                   TypeGoverningLaw,
	"dispute resolution":           TypeGoverningLaw,
	"other":                        TypeOther,
	"general":                      TypeOther,
}

// ParseClauseType maps a service-provided clause label onto a ClauseType.
// Unrecognized or empty labels become TypeOther.
func ParseClauseType(s string) ClauseType {
	key := labelKey(s)
	if t, ok := typeAliases[key]; ok {
		return t
	}
	for _, suffix := range []string{" clauses", " clause"} {
		if trimmed := strings.TrimSuffix(key, suffix); trimmed != key {
			if t, ok := typeAliases[trimmed]; ok {
				return t
			}
		}
	}
	return TypeOther
}

// labelKey lowercases a label, treats '_' and '-' as spaces and collapses
// runs of whitespace.
func labelKey(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
