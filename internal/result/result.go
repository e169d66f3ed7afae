// Package result turns raw verification payloads into presentation-ready
// values. Nothing in this package fails on missing or mistyped fields: every
// value has a default.
package result

import (
	"fmt"
	"math"
	"strings"
)

const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

const (
	minTrustScore = 0
	maxTrustScore = 100
)

// Color is a display token for the risk badge.
type Color string

const (
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorRed    Color = "red"
)

// SkillMatch is one entry of matched_skills.
type SkillMatch struct {
	Skill          string   `mapstructure:"skill" json:"skill"`
	FoundInGitHub  bool     `mapstructure:"found_in_github" json:"found_in_github"`
	Confidence     float64  `mapstructure:"confidence" json:"confidence,omitempty"`
	GitHubProjects []string `mapstructure:"github_projects" json:"github_projects,omitempty"`
}

// View is a normalized verification result. It is immutable once built;
// Tag is assigned by the owner that publishes it.
type View struct {
	Tag string `json:"tag,omitempty"`

	TrustScore      float64      `json:"trust_score"`
	RiskLevel       string       `json:"risk_level"`
	RiskColor       Color        `json:"risk_color"`
	MatchPercentage float64      `json:"match_percentage"`
	MatchLabel      string       `json:"match_label"`
	MatchedSkills   []SkillMatch `json:"matched_skills"`
	Verified        []string     `json:"verified"`
	Unverified      []string     `json:"unverified"`
	ResumeSkills    []string     `json:"resume_skills"`

	GitHubSkills    []string       `json:"github_skills,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	GitHubStats     map[string]any `json:"github_stats,omitempty"`
	Timestamp       string         `json:"timestamp,omitempty"`
}

// ClampScore keeps a trust score inside [0,100]. NaN is treated as absent.
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score):
		return minTrustScore
	case score < minTrustScore:
		return minTrustScore
	case score > maxTrustScore:
		return maxTrustScore
	default:
		return score
	}
}

// FormatPercentage renders a percentage with exactly two decimals.
func FormatPercentage(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}

// ColorFor maps a risk level to a badge color. Only the exact strings LOW and
// MEDIUM are recognized; anything else, including an empty level, is red.
func ColorFor(level string) Color {
	switch level {
	case RiskLow:
		return ColorGreen
	case RiskMedium:
		return ColorYellow
	default:
		return ColorRed
	}
}

// Partition splits matches by whether the skill was found on GitHub. Order is
// preserved within each list and every match lands in exactly one of them.
func Partition(matches []SkillMatch) (verified, unverified []string) {
	verified = make([]string, 0, len(matches))
	unverified = make([]string, 0, len(matches))

	for _, m := range matches {
		if m.FoundInGitHub {
			verified = append(verified, m.Skill)
			continue
		}
		unverified = append(unverified, m.Skill)
	}

	return verified, unverified
}

// HasVerified reports whether enrichment has anything to work with.
func (v *View) HasVerified() bool {
	return v != nil && len(v.Verified) > 0
}

// RiskLabel is the risk level as shown on the badge.
func (v *View) RiskLabel() string {
	if v == nil || strings.TrimSpace(v.RiskLevel) == "" {
		return "UNKNOWN"
	}
	return v.RiskLevel
}
