// Package enrichment owns the currently displayed verification result and the
// interview questions generated for it.
//
// Every published result gets a relevance tag. The question fetch started for
// a result carries that tag, and its outcome is applied only while the tag is
// still current, so a slow fetch for a superseded result can never overwrite
// the state of a newer one.
package enrichment

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/trusthire/trusthire/internal/logger"
	"github.com/trusthire/trusthire/internal/metrics"
	"github.com/trusthire/trusthire/internal/result"
	"go.uber.org/zap"
)

// Status describes the enrichment step of the current result.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// QuestionSource generates interview questions for verified skills.
type QuestionSource interface {
	FetchInterviewQuestions(ctx context.Context, skills []string) ([]string, error)
}

// Snapshot is an immutable copy of the controller state.
type Snapshot struct {
	Tag       string       `json:"tag,omitempty"`
	Result    *result.View `json:"result,omitempty"`
	Questions []string     `json:"questions"`
	Status    Status       `json:"status"`
	// SubmitError is set when the last submission failed; Result is nil then.
	SubmitError string `json:"submit_error,omitempty"`
}

// Ready reports whether a result is available for rendering.
func (s Snapshot) Ready() bool {
	return s.Result != nil
}

type Controller struct {
	ctx     context.Context
	source  QuestionSource
	logger  *zap.Logger
	Metrics *metrics.Recorder

	newTag func() string

	mu      sync.Mutex
	state   Snapshot
	changed chan struct{}

	wg sync.WaitGroup
}

// New returns an idle controller. ctx bounds every question fetch the
// controller starts.
func New(ctx context.Context, source QuestionSource, log *zap.Logger) *Controller {
	return &Controller{
		ctx:     ctx,
		source:  source,
		logger:  logger.WithFields(log, zap.String("component", "enrichment")),
		newTag:  uuid.NewString,
		state:   Snapshot{Status: StatusIdle, Questions: []string{}},
		changed: make(chan struct{}),
	}
}

// Publish makes view the current result, superseding any previous one, and
// starts question enrichment when the view has verified skills. The returned
// snapshot reflects the state right after publishing.
func (c *Controller) Publish(view *result.View) Snapshot {
	if view == nil {
		view = result.Normalize(nil)
	}

	tag := c.newTag()
	current := *view
	current.Tag = tag
	skills := append([]string(nil), current.Verified...)

	next := Snapshot{
		Tag:       tag,
		Result:    &current,
		Questions: []string{},
		Status:    StatusDone,
	}
	if len(skills) > 0 {
		next.Status = StatusLoading
	}

	c.mu.Lock()
	previous := c.state
	c.setLocked(next)
	c.mu.Unlock()

	if previous.Status == StatusLoading {
		c.logger.Debug("superseding in-flight enrichment", zap.String(logger.FieldTag, previous.Tag))
	}

	if len(skills) == 0 {
		c.logger.Debug("no verified skills, enrichment skipped", zap.String(logger.FieldTag, tag))
		c.Metrics.EnrichmentFinished(string(StatusDone))
		return next
	}

	c.logger.Debug("starting enrichment",
		zap.String(logger.FieldTag, tag),
		zap.Strings("skills", skills),
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		questions, err := c.source.FetchInterviewQuestions(c.ctx, skills)
		c.apply(tag, questions, err)
	}()

	return next
}

// Reject records a failed submission. The previous result is dropped and any
// in-flight enrichment becomes irrelevant.
func (c *Controller) Reject(err error) Snapshot {
	next := Snapshot{
		Tag:       c.newTag(),
		Questions: []string{},
		Status:    StatusIdle,
	}
	if err != nil {
		next.SubmitError = err.Error()
	}

	c.mu.Lock()
	c.setLocked(next)
	c.mu.Unlock()

	return next
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.copyLocked()
}

// Watch returns the current state together with a channel that is closed on
// the next state change.
func (c *Controller) Watch() (Snapshot, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.copyLocked(), c.changed
}

// Wait blocks until the current result is no longer loading questions or ctx
// is done.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	for {
		snap, changed := c.Watch()
		if snap.Status != StatusLoading {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		}
	}
}

// Drain waits for all started fetches to return, including superseded ones.
func (c *Controller) Drain() {
	c.wg.Wait()
}

func (c *Controller) apply(tag string, questions []string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Tag != tag {
		c.logger.Debug("discarding stale enrichment outcome",
			zap.String(logger.FieldTag, tag),
			zap.String("current_tag", c.state.Tag),
		)
		c.Metrics.EnrichmentDiscarded()
		return
	}

	next := c.state
	if err != nil {
		c.logger.Warn("interview questions unavailable",
			zap.String(logger.FieldTag, tag),
			zap.Error(err),
		)
		next.Status = StatusFailed
		next.Questions = []string{}
	} else {
		next.Status = StatusDone
		next.Questions = append(make([]string, 0, len(questions)), questions...)
	}

	c.Metrics.EnrichmentFinished(string(next.Status))
	c.setLocked(next)
}

// setLocked replaces the state and wakes up watchers. c.mu must be held.
func (c *Controller) setLocked(next Snapshot) {
	c.state = next
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Controller) copyLocked() Snapshot {
	snap := c.state
	snap.Questions = append(make([]string, 0, len(c.state.Questions)), c.state.Questions...)
	return snap
}
