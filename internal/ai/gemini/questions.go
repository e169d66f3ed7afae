package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/trusthire/trusthire/internal/logger"
	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
}

// Questioner generates interview questions with Gemini. It is a drop-in
// replacement for the verification service's question endpoint.
type Questioner struct {
	generator contentGenerator
	logger    *zap.Logger
	perSkill  int
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const (
	systemInstruction = "You are a senior technical interviewer. Reply with JSON only."

	defaultMaxLogLength = 200
	defaultPerSkill     = 2
	maxSkillRunes       = 64
)

func NewQuestioner(generator contentGenerator, perSkill, maxLogLength int, log *zap.Logger) *Questioner {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if perSkill <= 0 {
		perSkill = defaultPerSkill
	}

	return &Questioner{
		generator: generator,
		logger:    logger.WithFields(log),
		perSkill:  perSkill,
		maxLogLen: maxLogLength,
	}
}

func (q *Questioner) FetchInterviewQuestions(ctx context.Context, skills []string) ([]string, error) {
	cleaned := sanitizeSkills(skills)
	if len(cleaned) == 0 {
		return []string{}, nil
	}

	prompt := buildPrompt(cleaned, q.perSkill)

	q.logger.Debug("gemini generate content request",
		zap.Int("skills", len(cleaned)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, q.maxLogLen)),
	)

	raw, err := q.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, err
	}

	q.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, q.maxLogLen)),
	)

	return parseQuestions(raw)
}

func buildPrompt(skills []string, perSkill int) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Skills:\n{{SKILLS}}\n\nQuestions per skill: {{PER_SKILL}}\n\nJSON Response:"
	}

	lines := make([]string, 0, len(skills))
	for _, s := range skills {
		lines = append(lines, "- "+s)
	}

	prompt := strings.ReplaceAll(template, "{{SKILLS}}", strings.Join(lines, "\n"))
	prompt = strings.ReplaceAll(prompt, "{{PER_SKILL}}", strconv.Itoa(perSkill))
	return prompt
}

// sanitizeSkills keeps skill names on a single line, drops blanks and
// duplicates, and bounds their length so they cannot smuggle instructions.
func sanitizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	cleaned := make([]string, 0, len(skills))

	for _, skill := range skills {
		skill = strings.Join(strings.Fields(skill), " ")
		skill = strings.NewReplacer("[", "(", "]", ")").Replace(skill)
		if skill == "" {
			continue
		}
		if runes := []rune(skill); len(runes) > maxSkillRunes {
			skill = string(runes[:maxSkillRunes])
		}

		key := strings.ToLower(skill)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, skill)
	}

	return cleaned
}

func parseQuestions(raw string) ([]string, error) {
	cleaned := extractJSON(raw)

	var data any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	var items []any
	switch val := data.(type) {
	case map[string]any:
		list, ok := val["questions"].([]any)
		if !ok {
			return []string{}, nil
		}
		items = list
	case []any:
		items = val
	default:
		return nil, errors.New("parse gemini response: unexpected json type")
	}

	questions := make([]string, 0, len(items))
	for _, item := range items {
		text, ok := item.(string)
		if !ok {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			questions = append(questions, text)
		}
	}

	return questions, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
