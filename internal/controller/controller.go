// Package controller owns the upload/results state of one user and the
// transitions between the two pages.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/plantdoc/internal/classifier"
	"github.com/example/plantdoc/internal/diagnosis"
	"github.com/example/plantdoc/internal/logging"
	"github.com/example/plantdoc/internal/metrics"
)

// Recorder receives the outcome of every submission that reached the service.
type Recorder interface {
	ObserveSubmission(outcome metrics.Outcome, latency time.Duration, result *diagnosis.Result)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSubmission(metrics.Outcome, time.Duration, *diagnosis.Result) {}

// Controller mediates between user actions and the classification service.
// The network call in Submit is made without holding the lock, so the state
// stays readable (IsLoading is visible) while a request is in flight.
type Controller struct {
	mu    sync.Mutex
	state UploadState

	client    classifier.Client
	recorder  Recorder
	logger    *zap.Logger
	sessionID string
	now       func() time.Time
}

// Option customises a Controller.
type Option func(*Controller)

// WithRecorder reports submission outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithSessionID tags log lines with the owning session.
func WithSessionID(id string) Option {
	return func(c *Controller) { c.sessionID = id }
}

// New constructs a controller in the initial upload state.
func New(client classifier.Client, logger *zap.Logger, opts ...Option) *Controller {
	c := &Controller{
		state:    InitialState(),
		client:   client,
		recorder: nopRecorder{},
		logger:   logger.Named("controller"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelectImage stores a picked file and its preview. The type is not checked.
// A preview that cannot be built is left empty without surfacing an error.
// Selection only happens on the upload page.
func (c *Controller) SelectImage(file *ImageFile) {
	if file == nil || c.State().Page != PageUpload {
		return
	}
	preview, err := PreviewURI(file)
	if err != nil {
		logging.WithOperation(c.logger, "controller.select_image", c.sessionID).
			Debug("preview unavailable", zap.String("filename", file.Name), zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Page != PageUpload {
		return
	}
	c.state.SelectedFile = file
	c.state.PreviewURI = preview
	c.state.ErrorMessage = ""
}

// DropImage behaves like SelectImage for files whose declared type is
// image/*. Anything else, or a drop outside the upload page, is ignored and
// false is returned.
func (c *Controller) DropImage(file *ImageFile) bool {
	if !file.IsImage() || c.State().Page != PageUpload {
		return false
	}
	c.SelectImage(file)
	return true
}

// Submit sends the selected file to the classification service. It is a
// no-op without a selected file or outside the upload page. On success the controller moves to the
// results page; on failure it stays on the upload page with FailureMessage
// and the cause is returned for logging. IsLoading is cleared on every path.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	file := c.state.SelectedFile
	if file == nil || c.state.Page != PageUpload {
		c.mu.Unlock()
		return nil
	}
	c.state.IsLoading = true
	c.state.ErrorMessage = ""
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.state.IsLoading = false
		c.mu.Unlock()
	}()

	opLogger := logging.WithOperation(c.logger, "controller.submit", c.sessionID)
	start := c.now()
	result, err := c.client.Predict(ctx, file.classifierImage())
	latency := c.now().Sub(start)

	if err != nil {
		c.recorder.ObserveSubmission(outcomeFor(err), latency, nil)
		wrapped := logging.NewOperationError("controller.submit", c.sessionID, err)
		opLogger.Error("analysis failed", zap.Error(wrapped), zap.Duration("latency", latency))

		c.mu.Lock()
		c.state.Page = PageUpload
		c.state.Result = nil
		c.state.ErrorMessage = FailureMessage
		c.mu.Unlock()
		return wrapped
	}

	c.recorder.ObserveSubmission(metrics.OutcomeSuccess, latency, result)
	opLogger.Info("analysis complete",
		zap.String("disease", result.Disease),
		zap.String("severity", result.Severity),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("latency", latency),
	)

	c.mu.Lock()
	c.state.Result = result
	c.state.Page = PageResults
	c.mu.Unlock()
	return nil
}

// Reset discards the file, preview, result and error and returns to the upload page.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = InitialState()
}

func outcomeFor(err error) metrics.Outcome {
	var terr *classifier.TransferError
	switch {
	case errors.As(err, &terr):
		return metrics.OutcomeTransferError
	case errors.Is(err, classifier.ErrMalformedResponse):
		return metrics.OutcomeMalformedResponse
	default:
		return metrics.OutcomeError
	}
}
