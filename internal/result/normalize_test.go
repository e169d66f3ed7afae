package result

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExamplePayload(t *testing.T) {
	raw := map[string]any{
		"trust_score":      72.0,
		"risk_level":       "MEDIUM",
		"match_percentage": 55.5,
		"matched_skills": []any{
			map[string]any{"skill": "Go", "found_in_github": true},
			map[string]any{"skill": "Rust", "found_in_github": false},
		},
	}

	view := Normalize(raw)

	assert.Equal(t, 72.0, view.TrustScore)
	assert.Equal(t, ColorYellow, view.RiskColor)
	assert.Equal(t, []string{"Go"}, view.Verified)
	assert.Equal(t, []string{"Rust"}, view.Unverified)
	assert.Equal(t, "55.50%", view.MatchLabel)
	assert.Equal(t, 55.5, view.MatchPercentage)
}

func TestNormalizeDefaults(t *testing.T) {
	fields := []string{"trust_score", "risk_level", "match_percentage", "matched_skills", "resume_skills"}
	full := map[string]any{
		"trust_score":      50.0,
		"risk_level":       "LOW",
		"match_percentage": 10.0,
		"matched_skills":   []any{map[string]any{"skill": "Go", "found_in_github": true}},
		"resume_skills":    []any{"Go"},
	}

	// every subset of fields may be missing
	for mask := 0; mask < 1<<len(fields); mask++ {
		raw := map[string]any{}
		var dropped []string
		for i, f := range fields {
			if mask&(1<<i) != 0 {
				dropped = append(dropped, f)
				continue
			}
			raw[f] = full[f]
		}

		t.Run("missing "+strings.Join(dropped, ","), func(t *testing.T) {
			var view *View
			require.NotPanics(t, func() { view = Normalize(raw) })
			require.NotNil(t, view)

			if _, ok := raw["trust_score"]; !ok {
				assert.Equal(t, 0.0, view.TrustScore)
			}
			if _, ok := raw["risk_level"]; !ok {
				assert.Equal(t, "", view.RiskLevel)
				assert.Equal(t, ColorRed, view.RiskColor)
			}
			if _, ok := raw["match_percentage"]; !ok {
				assert.Equal(t, "0.00%", view.MatchLabel)
			}
			if _, ok := raw["matched_skills"]; !ok {
				assert.Empty(t, view.MatchedSkills)
				assert.Empty(t, view.Verified)
				assert.Empty(t, view.Unverified)
			}
			if _, ok := raw["resume_skills"]; !ok {
				assert.NotNil(t, view.ResumeSkills)
				assert.Empty(t, view.ResumeSkills)
			}
		})
	}
}

func TestNormalizeNilPayload(t *testing.T) {
	view := Normalize(nil)

	require.NotNil(t, view)
	assert.Equal(t, 0.0, view.TrustScore)
	assert.Equal(t, ColorRed, view.RiskColor)
	assert.Equal(t, "0.00%", view.MatchLabel)
	assert.False(t, view.HasVerified())
}

func TestNormalizeMistypedFields(t *testing.T) {
	raw := map[string]any{
		"trust_score":      "87.5",
		"risk_level":       map[string]any{"level": "LOW"},
		"match_percentage": "not a number",
		"matched_skills": []any{
			"Go",
			map[string]any{"skill": "Docker", "found_in_github": "true", "confidence": "0.8"},
			map[string]any{"skill": "Java", "found_in_github": map[string]any{"value": true}},
		},
		"resume_skills": []any{"Go", 42.0, nil, map[string]any{}},
	}

	view := Normalize(raw)

	assert.Equal(t, 87.5, view.TrustScore)
	assert.Equal(t, "", view.RiskLevel)
	assert.Equal(t, ColorRed, view.RiskColor)
	assert.Equal(t, "0.00%", view.MatchLabel)
	require.Len(t, view.MatchedSkills, 2)
	assert.Equal(t, 0.8, view.MatchedSkills[0].Confidence)
	assert.Equal(t, []string{"Docker"}, view.Verified)
	assert.Equal(t, []string{"Java"}, view.Unverified)
	assert.Equal(t, []string{"Go", "42"}, view.ResumeSkills)
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  float64
	}{
		{name: "negative", input: -15, want: 0},
		{name: "above range", input: 180.2, want: 100},
		{name: "lower bound", input: 0, want: 0},
		{name: "upper bound", input: 100, want: 100},
		{name: "inside", input: 42.42, want: 42.42},
		{name: "nan", input: math.NaN(), want: 0},
		{name: "positive infinity", input: math.Inf(1), want: 100},
		{name: "negative infinity", input: math.Inf(-1), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampScore(tt.input))
		})
	}
}

func TestNormalizeClampsTrustScore(t *testing.T) {
	for _, score := range []any{-1.0, 101.0, 1e9, -1e9, "250"} {
		view := Normalize(map[string]any{"trust_score": score})
		assert.GreaterOrEqual(t, view.TrustScore, 0.0, "score %v", score)
		assert.LessOrEqual(t, view.TrustScore, 100.0, "score %v", score)
	}
}

func TestColorFor(t *testing.T) {
	tests := map[string]Color{
		"LOW":       ColorGreen,
		"MEDIUM":    ColorYellow,
		"HIGH":      ColorRed,
		"VERY_HIGH": ColorRed,
		"low":       ColorRed,
		" LOW":      ColorRed,
		"":          ColorRed,
	}

	for level, want := range tests {
		assert.Equal(t, want, ColorFor(level), "level %q", level)
	}
}

func TestPartitionIsExhaustiveAndDisjoint(t *testing.T) {
	matches := []SkillMatch{
		{Skill: "Go", FoundInGitHub: true},
		{Skill: "Rust"},
		{Skill: "Python", FoundInGitHub: true},
		{Skill: "Haskell"},
		{Skill: "Go", FoundInGitHub: false},
	}

	verified, unverified := Partition(matches)

	assert.Equal(t, []string{"Go", "Python"}, verified)
	assert.Equal(t, []string{"Rust", "Haskell", "Go"}, unverified)
	assert.Len(t, append(verified, unverified...), len(matches))
}

func TestPartitionEmpty(t *testing.T) {
	verified, unverified := Partition(nil)

	assert.NotNil(t, verified)
	assert.NotNil(t, unverified)
	assert.Empty(t, verified)
	assert.Empty(t, unverified)
}

func TestQuestions(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want []string
	}{
		{name: "populated", raw: map[string]any{"questions": []any{"a", "b"}}, want: []string{"a", "b"}},
		{name: "absent", raw: map[string]any{}, want: []string{}},
		{name: "not a list", raw: map[string]any{"questions": "a"}, want: []string{}},
		{name: "mixed items", raw: map[string]any{"questions": []any{"a", nil, map[string]any{}}}, want: []string{"a"}},
		{name: "nil payload", raw: nil, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Questions(tt.raw))
		})
	}
}

func TestDecode(t *testing.T) {
	raw, err := Decode(strings.NewReader(`{"trust_score": 10}`))
	require.NoError(t, err)
	assert.Equal(t, 10.0, raw["trust_score"])

	_, err = Decode(strings.NewReader(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = Decode(strings.NewReader(`null`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = Decode(strings.NewReader(`{not json`))
	assert.Error(t, err)
}
