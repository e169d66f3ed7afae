package ai

import (
	"context"
	"fmt"
	"strings"
)

// Supported interview question providers.
const (
	ProviderRemote = "remote"
	ProviderGemini = "gemini"
)

// QuestionGenerator produces interview questions for verified skills.
type QuestionGenerator interface {
	FetchInterviewQuestions(ctx context.Context, skills []string) ([]string, error)
}

// ParseProvider normalizes a configured provider name. Empty means remote.
func ParseProvider(name string) (string, error) {
	provider := strings.TrimSpace(strings.ToLower(name))
	switch provider {
	case "":
		return ProviderRemote, nil
	case ProviderRemote, ProviderGemini:
		return provider, nil
	default:
		return "", fmt.Errorf("unsupported questions provider: %s", name)
	}
}
