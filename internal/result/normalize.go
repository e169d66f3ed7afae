package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/mitchellh/mapstructure"
)

// ErrNotObject is returned by Decode when the body is valid JSON but not an object.
var ErrNotObject = errors.New("body is not a JSON object")

// Decode reads a JSON object from r.
func Decode(r io.Reader) (map[string]any, error) {
	var body any
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	raw, ok := body.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	return raw, nil
}

// Normalize builds a View from an arbitrary, possibly partial, payload.
func Normalize(raw map[string]any) *View {
	matches := skillMatches(raw["matched_skills"])
	verified, unverified := Partition(matches)

	risk := text(raw["risk_level"])
	match := number(raw["match_percentage"])

	return &View{
		TrustScore:      ClampScore(number(raw["trust_score"])),
		RiskLevel:       risk,
		RiskColor:       ColorFor(risk),
		MatchPercentage: match,
		MatchLabel:      FormatPercentage(match),
		MatchedSkills:   matches,
		Verified:        verified,
		Unverified:      unverified,
		ResumeSkills:    stringList(raw["resume_skills"]),
		GitHubSkills:    stringList(raw["github_skills"]),
		Recommendations: stringList(raw["recommendations"]),
		GitHubStats:     object(raw["github_stats"]),
		Timestamp:       text(raw["timestamp"]),
	}
}

// Questions extracts the questions list from an interview-questions response.
// An absent or malformed field yields an empty, non-nil list.
func Questions(raw map[string]any) []string {
	return stringList(raw["questions"])
}

func weakDecode(input, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

func number(v any) float64 {
	if v == nil {
		return 0
	}

	var f float64
	if err := weakDecode(v, &f); err != nil {
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}

	return f
}

func text(v any) string {
	if v == nil {
		return ""
	}

	var s string
	if err := weakDecode(v, &s); err != nil {
		return ""
	}

	return s
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}

	list := make([]string, 0, len(items))
	for _, item := range items {
		switch item.(type) {
		case nil, bool, map[string]any, []any:
			continue
		}

		var s string
		if err := weakDecode(item, &s); err != nil {
			continue
		}
		list = append(list, s)
	}

	return list
}

func skillMatches(v any) []SkillMatch {
	items, ok := v.([]any)
	if !ok {
		return []SkillMatch{}
	}

	matches := make([]SkillMatch, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		// decoded field by field so one bad value does not drop the entry
		match := SkillMatch{
			Skill:          text(entry["skill"]),
			FoundInGitHub:  flag(entry["found_in_github"]),
			Confidence:     number(entry["confidence"]),
			GitHubProjects: stringList(entry["github_projects"]),
		}
		matches = append(matches, match)
	}

	return matches
}

func flag(v any) bool {
	if v == nil {
		return false
	}

	var b bool
	if err := weakDecode(v, &b); err != nil {
		return false
	}

	return b
}

func object(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	return m
}
