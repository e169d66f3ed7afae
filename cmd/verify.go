package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/trusthire/trusthire/internal/enrichment"
	"github.com/trusthire/trusthire/internal/logger"
	"github.com/trusthire/trusthire/internal/render"
	"github.com/trusthire/trusthire/internal/trusthire"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	PromptAnother = "Verify another résumé"
	PromptRetry   = "Retry"
	PromptExit    = "Exit"

	outputText = "text"
	outputJSON = "json"
)

var errExit = errors.New("exit requested")

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a résumé against a GitHub profile and print the dashboard",
	Run: func(cmd *cobra.Command, _ []string) {
		if code := verify(cmd); code != 0 {
			os.Exit(code)
		}
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringP("resume", "r", "", "path to the résumé file")
	verifyCmd.Flags().StringP("github", "g", "", "GitHub username of the candidate")
	verifyCmd.Flags().BoolP("wait", "w", true, "wait for interview questions before exiting")
	verifyCmd.Flags().Duration("wait-timeout", 2*time.Minute, "how long to wait for interview questions")
	verifyCmd.Flags().StringP("output", "o", outputText, "output format: text or json")
	verifyCmd.Flags().Bool("check", false, "only check that the verification service is reachable")
	verifyCmd.Flags().BoolP("no-prompt", "y", false, "never ask for input, fail on missing flags")
}

type verifyOptions struct {
	resume      string
	identity    string
	wait        bool
	waitTimeout time.Duration
	output      string
	interactive bool
}

func verify(cmd *cobra.Command) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log, config := setup()
	defer func() { _ = log.Sync() }()

	d, err := newDeps(ctx, config, log)
	if err != nil {
		log.Error("preparing the verification client", zap.Error(err))
		return 1
	}
	// stop and wait for question fetches before the logger is flushed
	defer func() {
		cancel()
		d.controller.Drain()
	}()

	if check, _ := cmd.Flags().GetBool("check"); check {
		if err := d.client.Health(ctx); err != nil {
			log.Error("verification service is not reachable", zap.Error(err))
			return 1
		}
		log.Info("verification service is reachable", zap.String("url", d.client.APIURL))
		return 0
	}

	opts, err := verifyOptionsFrom(cmd)
	if err != nil {
		log.Error("parsing flags", zap.Error(err))
		return 1
	}

	return verifyLoop(ctx, os.Stdout, render.Renderer{Color: isTerminal(os.Stdout)}, d, opts)
}

// verifyLoop submits résumés until the user is done and returns the process
// exit code. Without a terminal it runs once and fails on a failed submission.
func verifyLoop(ctx context.Context, w io.Writer, renderer render.Renderer, d *deps, opts *verifyOptions) int {
	for {
		if err := collectInputs(opts); err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return 0
			}
			d.logger.Error("reading input", zap.Error(err))
			return 1
		}

		snap, err := submit(ctx, d, opts)
		if err != nil {
			d.logger.Warn("submission rejected", zap.String(logger.FieldIdentity, opts.identity), zap.Error(err))
			if !opts.interactive {
				return 1
			}
			// ask again for the rejected input
			continue
		}

		if err := show(ctx, w, renderer, d.controller, snap, opts); err != nil {
			d.logger.Error("rendering the result", zap.Error(err))
			return 1
		}

		if !opts.interactive {
			if snap.SubmitError != "" {
				return 1
			}
			return 0
		}

		if err := nextAction(opts, snap); err != nil {
			if errors.Is(err, errExit) {
				return 0
			}
			d.logger.Error("exiting", zap.Error(err))
			return 1
		}
	}
}

func verifyOptionsFrom(cmd *cobra.Command) (*verifyOptions, error) {
	flags := cmd.Flags()

	opts := &verifyOptions{}
	opts.resume, _ = flags.GetString("resume")
	opts.identity, _ = flags.GetString("github")
	opts.wait, _ = flags.GetBool("wait")
	opts.waitTimeout, _ = flags.GetDuration("wait-timeout")
	opts.output, _ = flags.GetString("output")

	noPrompt, _ := flags.GetBool("no-prompt")
	opts.interactive = !noPrompt && isTerminal(os.Stdin)

	switch opts.output {
	case outputText, outputJSON:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", opts.output)
	}

	if opts.output == outputJSON {
		// json output is a single document
		opts.interactive = false
	}

	return opts, nil
}

// collectInputs asks for whatever is missing. Without a terminal missing
// values are left for validation to report.
func collectInputs(opts *verifyOptions) error {
	if !opts.interactive {
		return nil
	}

	if opts.resume == "" {
		resumePrompt := promptui.Prompt{
			Label:    "Résumé file",
			Validate: func(input string) error {
				info, err := os.Stat(strings.TrimSpace(input))
				if err != nil {
					return errors.New("file not found")
				}
				if info.IsDir() {
					return errors.New("is a directory")
				}
				return nil
			},
		}
		value, err := resumePrompt.Run()
		if err != nil {
			return err
		}
		opts.resume = strings.TrimSpace(value)
	}

	if opts.identity == "" {
		identityPrompt := promptui.Prompt{
			Label:    "GitHub username",
			Validate: func(input string) error {
				if !trusthire.ValidUsername(input) {
					return errors.New("invalid GitHub username format")
				}
				return nil
			},
		}
		value, err := identityPrompt.Run()
		if err != nil {
			return err
		}
		opts.identity = strings.TrimSpace(value)
	}

	return nil
}

// submit sends one résumé. A validation error is returned as is and leaves
// the controller untouched; a transport error is recorded as a failed state.
func submit(ctx context.Context, d *deps, opts *verifyOptions) (enrichment.Snapshot, error) {
	req := &trusthire.VerificationRequest{
		ResumeName: filepath.Base(opts.resume),
		Identity:   opts.identity,
	}

	if opts.resume != "" {
		data, err := os.ReadFile(opts.resume)
		if err != nil {
			opts.resume = ""
			return enrichment.Snapshot{}, fmt.Errorf("reading résumé: %w", err)
		}
		req.Resume = data
	} else {
		req.ResumeName = ""
	}

	d.logger.Info("submitting résumé",
		zap.String("file", req.ResumeName),
		zap.String(logger.FieldIdentity, req.Identity),
	)

	view, err := d.client.SubmitVerification(ctx, req)
	switch {
	case err == nil:
		snap := d.controller.Publish(view)
		d.logger.Info("verification result received",
			zap.String(logger.FieldTag, snap.Tag),
			zap.Float64("trust_score", view.TrustScore),
			zap.String("risk_level", view.RiskLabel()),
		)
		return snap, nil
	case trusthire.IsValidation(err):
		var verr *trusthire.ValidationError
		if errors.As(err, &verr) {
			switch verr.Field {
			case "resume":
				opts.resume = ""
			case "github_username":
				opts.identity = ""
			}
		}
		return enrichment.Snapshot{}, err
	default:
		d.logger.Error("verification failed", zap.Error(err))
		return d.controller.Reject(err), nil
	}
}

func show(ctx context.Context, w io.Writer, r render.Renderer, controller *enrichment.Controller, snap enrichment.Snapshot, opts *verifyOptions) error {
	if opts.output == outputJSON {
		if opts.wait {
			snap = waitForQuestions(ctx, controller, snap, opts.waitTimeout)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	if !opts.wait || snap.Status != enrichment.StatusLoading {
		return r.Dashboard(w, snap)
	}

	// main result first, questions once they arrive
	if err := r.Dashboard(w, snap); err != nil {
		return err
	}
	snap = waitForQuestions(ctx, controller, snap, opts.waitTimeout)
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return r.QuestionList(w, snap.Status, snap.Questions)
}

func waitForQuestions(ctx context.Context, controller *enrichment.Controller, snap enrichment.Snapshot, timeout time.Duration) enrichment.Snapshot {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	latest, err := controller.Wait(ctx)
	if err != nil || latest.Tag != snap.Tag {
		return snap
	}
	return latest
}

func nextAction(opts *verifyOptions, snap enrichment.Snapshot) error {
	items := []string{PromptAnother, PromptExit}
	if snap.SubmitError != "" {
		items = []string{PromptRetry, PromptAnother, PromptExit}
	}

	prompt := promptui.Select{
		Label: "What next?",
		Items: items,
	}

	_, action, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return errExit
		}
		return err
	}

	switch action {
	case PromptRetry:
		return nil
	case PromptAnother:
		opts.resume = ""
		opts.identity = ""
		return nil
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
