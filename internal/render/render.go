// Package render draws verification results for a terminal.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/trusthire/trusthire/internal/enrichment"
	"github.com/trusthire/trusthire/internal/result"
)

const (
	defaultWidth = 40

	NoSkillsMessage     = "No skills available"
	NoQuestionsMessage  = "No interview questions available"
	GeneratingMessage   = "Generating interview questions..."
	NoResultMessage     = "No verification result yet"
	submitFailedMessage = "Verification failed"
)

// Renderer writes the dashboard components. The zero value draws plain
// 40-column output.
type Renderer struct {
	Width int
	Color bool
}

func (r Renderer) width() int {
	if r.Width <= 0 {
		return defaultWidth
	}
	return r.Width
}

func (r Renderer) paint(c result.Color, s string) string {
	if !r.Color {
		return s
	}
	switch c {
	case result.ColorGreen:
		return promptui.Styler(promptui.FGGreen, promptui.FGBold)(s)
	case result.ColorYellow:
		return promptui.Styler(promptui.FGYellow, promptui.FGBold)(s)
	default:
		return promptui.Styler(promptui.FGRed, promptui.FGBold)(s)
	}
}

func (r Renderer) faint(s string) string {
	if !r.Color {
		return s
	}
	return promptui.Styler(promptui.FGFaint)(s)
}

func bar(filled, width int) string {
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// ScoreMeter draws a 0-100 score as a bar followed by its percentage.
func (r Renderer) ScoreMeter(w io.Writer, score float64) error {
	score = result.ClampScore(score)
	width := r.width()
	filled := int(math.Round(score / 100 * float64(width)))

	_, err := fmt.Fprintf(w, "Trust score %s %s\n", bar(filled, width), result.FormatPercentage(score))
	return err
}

// SkillChart draws one full-width bar per skill.
func (r Renderer) SkillChart(w io.Writer, skills []string) error {
	if len(skills) == 0 {
		_, err := fmt.Fprintln(w, r.faint(NoSkillsMessage))
		return err
	}

	pad := 0
	for _, s := range skills {
		if n := len([]rune(s)); n > pad {
			pad = n
		}
	}

	for _, s := range skills {
		if _, err := fmt.Fprintf(w, "%-*s %s\n", pad, s, bar(r.width()/2, r.width()/2)); err != nil {
			return err
		}
	}
	return nil
}

// Badges draws a titled list of skill badges.
func (r Renderer) Badges(w io.Writer, title string, color result.Color, skills []string) error {
	if _, err := fmt.Fprintf(w, "%s (%d)\n", title, len(skills)); err != nil {
		return err
	}
	if len(skills) == 0 {
		_, err := fmt.Fprintln(w, "  "+r.faint("none"))
		return err
	}

	badges := make([]string, 0, len(skills))
	for _, s := range skills {
		badges = append(badges, r.paint(color, "["+s+"]"))
	}
	_, err := fmt.Fprintln(w, "  "+strings.Join(badges, " "))
	return err
}

func (r Renderer) RiskBadge(w io.Writer, view *result.View) error {
	color := result.ColorRed
	if view != nil {
		color = view.RiskColor
	}
	_, err := fmt.Fprintf(w, "Risk level  %s\n", r.paint(color, "["+view.RiskLabel()+"]"))
	return err
}

// QuestionList draws the interview questions, or a placeholder while they are
// still being generated.
func (r Renderer) QuestionList(w io.Writer, status enrichment.Status, questions []string) error {
	if _, err := fmt.Fprintln(w, "Interview questions"); err != nil {
		return err
	}

	switch {
	case status == enrichment.StatusLoading:
		_, err := fmt.Fprintln(w, "  "+r.faint(GeneratingMessage))
		return err
	case len(questions) == 0:
		_, err := fmt.Fprintln(w, "  "+r.faint(NoQuestionsMessage))
		return err
	}

	for i, q := range questions {
		if _, err := fmt.Fprintf(w, "  %d. %s\n", i+1, q); err != nil {
			return err
		}
	}
	return nil
}

// Dashboard composes every component for a controller snapshot.
func (r Renderer) Dashboard(w io.Writer, snap enrichment.Snapshot) error {
	if !snap.Ready() {
		if snap.SubmitError != "" {
			_, err := fmt.Fprintf(w, "%s: %s\n", r.paint(result.ColorRed, submitFailedMessage), snap.SubmitError)
			return err
		}
		_, err := fmt.Fprintln(w, r.faint(NoResultMessage))
		return err
	}

	view := snap.Result
	steps := []func() error{
		func() error { return r.ScoreMeter(w, view.TrustScore) },
		func() error { return r.RiskBadge(w, view) },
		func() error {
			_, err := fmt.Fprintf(w, "Skill match %s\n\n", view.MatchLabel)
			return err
		},
		func() error { return r.Badges(w, "Verified skills", result.ColorGreen, view.Verified) },
		func() error { return r.Badges(w, "Unverified skills", result.ColorRed, view.Unverified) },
		func() error {
			_, err := fmt.Fprintln(w, "\nRésumé skills")
			return err
		},
		func() error { return r.SkillChart(w, view.ResumeSkills) },
		func() error {
			if len(view.Recommendations) == 0 {
				return nil
			}
			if _, err := fmt.Fprintln(w, "\nRecommendations"); err != nil {
				return err
			}
			for _, rec := range view.Recommendations {
				if _, err := fmt.Fprintf(w, "  - %s\n", rec); err != nil {
					return err
				}
			}
			return nil
		},
		func() error {
			_, err := fmt.Fprintln(w)
			return err
		},
		func() error { return r.QuestionList(w, snap.Status, snap.Questions) },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
