package reward

import (
	"regexp"
	"strings"
)

// PenaltyParams holds the thresholds and keyword sets for penalty detection.
type PenaltyParams struct {
	MaxRepeats       int
	MinInfoGain      float64
	ErrorKeywords    []string
	CriticalKeywords []string
	SystemKeywords   []string
}

// DefaultPenaltyParams returns the standard penalty configuration.
func DefaultPenaltyParams() PenaltyParams {
	return PenaltyParams{
		MaxRepeats:  3,
		MinInfoGain: 0.01,
		ErrorKeywords: []string{
			"error", "failed", "exception", "denied", "invalid",
		},
		CriticalKeywords: []string{
			"segmentation fault", "core dumped", "crash", "fatal", "terminated",
		},
		SystemKeywords: []string{
			"unauthorized", "access denied", "permission", "firewall",
		},
	}
}

// PenaltyReport classifies one action's penalty conditions. Score is the
// accumulated negative reward, clamped at -1.
type PenaltyReport struct {
	Redundant   bool
	Error       bool
	Critical    bool
	Inefficient bool
	Score       float64
}

// EvaluatePenalties scores the negative-reward conditions for one action:
// repetition against the action history, error and access-restriction
// keywords in the tool output, and near-zero knowledge gain.
func EvaluatePenalties(history []string, action, outputLog string, knowledgeGain float64, p PenaltyParams) PenaltyReport {
	var rep PenaltyReport

	repeats := 0
	for _, a := range history {
		if a == action {
			repeats++
		}
	}
	if repeats >= p.MaxRepeats {
		rep.Redundant = true
		rep.Score -= 0.3 * float64(repeats-p.MaxRepeats+1)
	}

	if containsKeyword(outputLog, p.ErrorKeywords) {
		rep.Error = true
		rep.Score -= 0.5
	}

	if containsKeyword(outputLog, p.CriticalKeywords) {
		rep.Critical = true
		rep.Score -= 1.0
	}

	if containsKeyword(outputLog, p.SystemKeywords) {
		rep.Error = true
		rep.Score -= 0.2
	}

	if knowledgeGain < p.MinInfoGain {
		rep.Inefficient = true
		rep.Score -= (p.MinInfoGain - knowledgeGain) * 2
	}

	if rep.Score < -1.0 {
		rep.Score = -1.0
	}
	return rep
}

func containsKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
