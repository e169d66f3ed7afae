package trusthire

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const (
	defaultMaxSize = 5 * 1024 * 1024
	maxUsernameLen = 39
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9](?:-?[a-zA-Z0-9])*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// VerificationRequest is a single résumé submission. It is discarded once the
// request completes.
type VerificationRequest struct {
	ResumeName string `validate:"required"`
	Resume     []byte `validate:"required,min=1"`
	Identity   string `validate:"required,github_username"`
}

// UploadLimits restricts what is uploaded to the verification service.
// A zero MaxSize or empty Extensions disables the respective check.
type UploadLimits struct {
	MaxSize    int64
	Extensions []string
}

func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxSize:    defaultMaxSize,
		Extensions: []string{".pdf"},
	}
}

// Validate checks the request before anything is sent.
func (r *VerificationRequest) Validate(limits UploadLimits) error {
	if r == nil {
		return &ValidationError{Field: "request", Reason: "is required"}
	}

	if err := getValidator().Struct(r); err != nil {
		return toValidationError(err)
	}

	if limits.MaxSize > 0 && int64(len(r.Resume)) > limits.MaxSize {
		return &ValidationError{
			Field:  "resume",
			Reason: fmt.Sprintf("file size exceeds %.1fMB limit", float64(limits.MaxSize)/1024/1024),
		}
	}

	if len(limits.Extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(r.ResumeName))
		allowed := false
		for _, candidate := range limits.Extensions {
			if strings.EqualFold(strings.TrimSpace(candidate), ext) {
				allowed = true
				break
			}
		}
		if !allowed {
			return &ValidationError{
				Field:  "resume",
				Reason: fmt.Sprintf("only %s files are allowed", strings.Join(limits.Extensions, ", ")),
			}
		}
	}

	return nil
}

// ValidUsername reports whether name is a well-formed GitHub username.
func ValidUsername(name string) bool {
	name = strings.TrimSpace(name)
	return len(name) <= maxUsernameLen && usernamePattern.MatchString(name)
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// registering a fixed tag with a non-nil func cannot fail
		_ = validate.RegisterValidation("github_username", func(fl validator.FieldLevel) bool {
			return ValidUsername(fl.Field().String())
		})
	})

	return validate
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "request", Reason: err.Error()}
	}

	fe := fieldErrs[0]
	switch fe.Field() {
	case "Identity":
		if fe.Tag() == "required" {
			return &ValidationError{Field: "github_username", Reason: "is required"}
		}
		return &ValidationError{Field: "github_username", Reason: "invalid GitHub username format"}
	case "Resume":
		return &ValidationError{Field: "resume", Reason: "file is empty"}
	case "ResumeName":
		return &ValidationError{Field: "resume", Reason: "file is required"}
	default:
		return &ValidationError{Field: fe.Field(), Reason: fe.Tag()}
	}
}
