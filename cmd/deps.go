package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/trusthire/trusthire/internal/ai"
	"github.com/trusthire/trusthire/internal/ai/gemini"
	"github.com/trusthire/trusthire/internal/enrichment"
	"github.com/trusthire/trusthire/internal/logger"
	"github.com/trusthire/trusthire/internal/metrics"
	"github.com/trusthire/trusthire/internal/secrets"
	"github.com/trusthire/trusthire/internal/trusthire"

	"go.uber.org/zap"
)

const (
	tokenEnv     = "TRUSTHIRE_API_TOKEN"
	geminiKeyEnv = "GEMINI_API_KEY"
)

// deps holds everything a command needs to talk to the verification service.
type deps struct {
	config     *Config
	logger     *zap.Logger
	metrics    *metrics.Recorder
	client     *trusthire.Client
	controller *enrichment.Controller
}

func newDeps(ctx context.Context, config *Config, log *zap.Logger) (*deps, error) {
	rec := metrics.New()

	client, err := newClient(config, log)
	if err != nil {
		return nil, err
	}
	client.Metrics = rec

	source, err := newQuestionSource(ctx, config, client, log)
	if err != nil {
		return nil, err
	}

	controller := enrichment.New(ctx, source, log)
	controller.Metrics = rec

	return &deps{
		config:     config,
		logger:     log,
		metrics:    rec,
		client:     client,
		controller: controller,
	}, nil
}

func newClient(config *Config, log *zap.Logger) (*trusthire.Client, error) {
	token, err := secrets.Optional(secrets.Source{
		Name: "verification service token",
		File: config.API.TokenFile,
		Env:  tokenEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set api.token-file or %s)", err, tokenEnv)
	}

	client := trusthire.New(log, token)

	if config.API.URL != "" {
		client.APIURL = config.API.URL
	}
	if config.API.UserAgent != "" {
		client.UserAgent = config.API.UserAgent
	}
	if config.API.Timeout > 0 {
		client.HTTPClient = &http.Client{Timeout: config.API.Timeout}
	}

	limits := trusthire.DefaultUploadLimits()
	if config.Upload.MaxSize > 0 {
		limits.MaxSize = config.Upload.MaxSize
	}
	if len(config.Upload.Extensions) > 0 {
		limits.Extensions = normalizeExtensions(config.Upload.Extensions)
	}
	client.Limits = limits

	return client, nil
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// newQuestionSource picks where interview questions come from. The remote
// service is the default.
func newQuestionSource(ctx context.Context, config *Config, client *trusthire.Client, log *zap.Logger) (ai.QuestionGenerator, error) {
	provider, err := ai.ParseProvider(config.Questions.Provider)
	if err != nil {
		return nil, err
	}

	if provider == ai.ProviderRemote {
		log.Debug("using remote question provider", logger.ProviderFields(provider, "")...)
		return client, nil
	}

	cfg := config.Questions.Gemini
	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.APIKeyFile,
		Env:  geminiKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set questions.gemini.api-key-file or %s)", err, geminiKeyEnv)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Model)
	if err != nil {
		return nil, err
	}

	questionerLogger := logger.WithProvider(log, provider, generator.Model())
	questionerLogger.Info("using gemini question provider")

	return gemini.NewQuestioner(generator, config.Questions.PerSkill, cfg.MaxLogLength, questionerLogger), nil
}
