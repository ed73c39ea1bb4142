package documents

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// Analysis value object. Satu-satunya skema JSON untuk kolom analysis.
type Analysis struct {
	Summary          string    `json:"summary"`
	HiddenClauses    []string  `json:"hidden_clauses"`
	RiskAssessment   string    `json:"risk_assessment"`
	Loopholes        []string  `json:"loopholes"`
	RedFlags         []string  `json:"red_flags"`
	RiskScore        float64   `json:"risk_score"`
	ConfidenceRating float64   `json:"confidence_rating"`
	KeyConcerns      []string  `json:"key_concerns"`
	AnalyzedAt       time.Time `json:"analyzed_at"`
}

var ErrInvalidAnalysis = errors.New("invalid analysis")

const (
	MinRiskScore  = 1.0
	MaxRiskScore  = 5.0
	MinConfidence = 0.0
	MaxConfidence = 100.0
)

// Validate checks the numeric ranges. Text fields may be empty; presence is checked by ParseAnalysis.
func (a *Analysis) Validate() error {
	if math.IsNaN(a.RiskScore) || a.RiskScore < MinRiskScore || a.RiskScore > MaxRiskScore {
		return fmt.Errorf("%w: risk_score %v out of range [1,5]", ErrInvalidAnalysis, a.RiskScore)
	}
	if math.IsNaN(a.ConfidenceRating) || a.ConfidenceRating < MinConfidence || a.ConfidenceRating > MaxConfidence {
		return fmt.Errorf("%w: confidence_rating %v out of range [0,100]", ErrInvalidAnalysis, a.ConfidenceRating)
	}
	return nil
}

// rawAnalysis pakai pointer supaya field yang hilang bisa dibedakan dari nilai kosong
type rawAnalysis struct {
	Summary          *string   `json:"summary"`
	HiddenClauses    *[]string `json:"hidden_clauses"`
	RiskAssessment   *string   `json:"risk_assessment"`
	Loopholes        *[]string `json:"loopholes"`
	RedFlags         *[]string `json:"red_flags"`
	RiskScore        *float64  `json:"risk_score"`
	ConfidenceRating *float64  `json:"confidence_rating"`
	KeyConcerns      *[]string `json:"key_concerns"`
}

// ParseAnalysis decodes a model reply into a validated Analysis stamped with analyzedAt.
// Markdown code fences around the JSON object are tolerated.
func ParseAnalysis(raw string, analyzedAt time.Time) (*Analysis, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidAnalysis)
	}

	var r rawAnalysis
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}

	missing := make([]string, 0, 8)
	if r.Summary == nil {
		missing = append(missing, "summary")
	}
	if r.HiddenClauses == nil {
		missing = append(missing, "hidden_clauses")
	}
	if r.RiskAssessment == nil {
		missing = append(missing, "risk_assessment")
	}
	if r.Loopholes == nil {
		missing = append(missing, "loopholes")
	}
	if r.RedFlags == nil {
		missing = append(missing, "red_flags")
	}
	if r.RiskScore == nil {
		missing = append(missing, "risk_score")
	}
	if r.ConfidenceRating == nil {
		missing = append(missing, "confidence_rating")
	}
	if r.KeyConcerns == nil {
		missing = append(missing, "key_concerns")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields %s", ErrInvalidAnalysis, strings.Join(missing, ", "))
	}

	a := &Analysis{
		Summary:          *r.Summary,
		HiddenClauses:    *r.HiddenClauses,
		RiskAssessment:   *r.RiskAssessment,
		Loopholes:        *r.Loopholes,
		RedFlags:         *r.RedFlags,
		RiskScore:        *r.RiskScore,
		ConfidenceRating: *r.ConfidenceRating,
		KeyConcerns:      *r.KeyConcerns,
		AnalyzedAt:       analyzedAt.UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// stripFences buang ```lang ... ``` di sekitar JSON, tag bahasa apa pun (```JSON, ```js)
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[len("```"):]
	// tag berhenti di whitespace pertama atau awal JSON
	if i := strings.IndexFunc(s, fenceTagEnd); i >= 0 {
		s = s[i:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func fenceTagEnd(r rune) bool {
	return unicode.IsSpace(r) || r == '{' || r == '['
}
