package trusthire

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/trusthire/trusthire/internal/metrics"
	"github.com/trusthire/trusthire/internal/result"
	"go.uber.org/zap"
)

const (
	apiURL    = "http://127.0.0.1:8000"
	userAgent = "trusthire-cli (+https://github.com/trusthire/trusthire)"

	verifyPath    = "/api/v1/verify"
	questionsPath = "/api/v1/interview-questions"
	healthPath    = "/api/v1/health"

	defaultTimeout = 30 * time.Second
)

// Operation names used in errors, logs and metrics.
const (
	OpVerify    = "verify"
	OpQuestions = "interview_questions"
	OpHealth    = "health"
)

type Client struct {
	token      string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	Limits     UploadLimits
	Metrics    *metrics.Recorder
}

// New returns a client for the verification service. An empty token disables
// the Authorization header.
func New(logger *zap.Logger, token string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  strings.TrimSpace(token),
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:    logger,
		UserAgent: userAgent,
		Limits:    DefaultUploadLimits(),
	}
}

// SubmitVerification validates the request, uploads it and returns the
// normalized verification result. It never retries.
func (c *Client) SubmitVerification(ctx context.Context, req *VerificationRequest) (*result.View, error) {
	if err := req.Validate(c.Limits); err != nil {
		return nil, err
	}

	fields := map[string]string{
		"github_username": strings.TrimSpace(req.Identity),
	}
	file := &formFile{
		field: "resume",
		name:  req.ResumeName,
		data:  req.Resume,
	}

	raw, err := c.postMultipart(ctx, OpVerify, c.endpoint(verifyPath), fields, file)
	if err != nil {
		return nil, err
	}

	view := result.Normalize(raw)

	c.logger.Debug("verification result received",
		zap.Float64("trust_score", view.TrustScore),
		zap.String("risk_level", view.RiskLevel),
		zap.Int("verified", len(view.Verified)),
		zap.Int("unverified", len(view.Unverified)),
	)

	return view, nil
}

// FetchInterviewQuestions posts the skill list and returns the generated
// questions. A missing or malformed questions field yields an empty set.
func (c *Client) FetchInterviewQuestions(ctx context.Context, skills []string) ([]string, error) {
	if skills == nil {
		skills = []string{}
	}

	raw, err := c.postJSON(ctx, OpQuestions, c.endpoint(questionsPath), skills)
	if err != nil {
		return nil, err
	}

	return result.Questions(raw), nil
}

// Health checks that the verification service answers.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.getJSON(ctx, OpHealth, c.endpoint(healthPath))
	return err
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.APIURL, "/") + path
}
