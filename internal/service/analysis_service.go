package service

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "go-vision-lens/internal/errors"
	"go-vision-lens/internal/ingest"
	"go-vision-lens/internal/interpreter"
	"go-vision-lens/internal/observer"
	"go-vision-lens/internal/presenter"
	"go-vision-lens/internal/session"
	"go-vision-lens/internal/strategy"
	"go-vision-lens/internal/vision"
	"go-vision-lens/pkg/models"
)

// VisionClient performs one analysis call against the vision API
type VisionClient interface {
	Analyze(ctx context.Context, req models.AnalysisRequest, credential string) models.AnalysisResult
}

// AnalysisService runs ImageIngest, DetectionClient, ResultInterpreter and
// ResultPresenter in order. Every outcome is returned as a View; the error
// is non-nil when the View is a failure and carries its HTTP status.
type AnalysisService interface {
	Analyze(ctx context.Context, sess *session.Session, image []byte) (presenter.View, error)
	AnalyzeBase64(ctx context.Context, sess *session.Session, encoded string) (presenter.View, error)
	NeedsCredential(sess *session.Session) bool
}

// Dependencies groups the collaborators of the analysis service
type Dependencies struct {
	Ingester      *ingest.Ingester
	Client        VisionClient
	Registry      *vision.Registry
	Instructions  *strategy.InstructionContext
	Interpreter   *interpreter.Interpreter
	Publisher     observer.Subject
	EnvCredential string
	Timeout       time.Duration
}

type analysisService struct {
	deps Dependencies
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(deps Dependencies) (AnalysisService, error) {
	if deps.Ingester == nil || deps.Client == nil || deps.Registry == nil {
		return nil, apperrors.NewInternalError("analysis service requires ingester, client and registry", nil)
	}
	if deps.Instructions == nil {
		deps.Instructions = strategy.NewInstructionContext(strategy.NewJSONInstructionStrategy())
	}
	if deps.Interpreter == nil {
		deps.Interpreter = interpreter.New()
	}
	if deps.Publisher == nil {
		deps.Publisher = observer.NewEventPublisher()
	}
	return &analysisService{deps: deps}, nil
}

// Analyze processes raw upload bytes
func (s *analysisService) Analyze(ctx context.Context, sess *session.Session, image []byte) (presenter.View, error) {
	return s.run(ctx, sess, func() (*ingest.Payload, error) {
		return s.deps.Ingester.Process(image)
	})
}

// AnalyzeBase64 processes a base64 string, with or without a data URL prefix
func (s *analysisService) AnalyzeBase64(ctx context.Context, sess *session.Session, encoded string) (presenter.View, error) {
	return s.run(ctx, sess, func() (*ingest.Payload, error) {
		return s.deps.Ingester.ProcessBase64(encoded)
	})
}

// NeedsCredential reports whether the session must enter an API key first
func (s *analysisService) NeedsCredential(sess *session.Session) bool {
	return s.credential(sess) == ""
}

func (s *analysisService) credential(sess *session.Session) string {
	if key := strings.TrimSpace(s.deps.EnvCredential); key != "" {
		return key
	}
	if sess == nil {
		return ""
	}
	return sess.Credential()
}

func (s *analysisService) run(ctx context.Context, sess *session.Session, load func() (*ingest.Payload, error)) (presenter.View, error) {
	if sess == nil {
		err := apperrors.NewInternalError("no session", nil)
		return presenter.PresentFailure(apperrors.Reason(err), ""), err
	}

	modelKey := sess.Model()
	if modelKey == "" {
		modelKey = s.deps.Registry.DefaultKey()
	}

	if !sess.TryBegin() {
		err := apperrors.NewConflictError("An analysis is already in progress", nil)
		s.publish(ctx, observer.AnalysisEvent{
			EventType:    observer.AnalysisRejected,
			Model:        modelKey,
			ErrorType:    errorType(err),
			ErrorMessage: err.Message,
		})
		return presenter.PresentFailure(err.Message, modelKey), err
	}
	defer sess.End()

	start := time.Now()
	s.publish(ctx, observer.AnalysisEvent{EventType: observer.AnalysisStarted, Model: modelKey})

	fail := func(err error) (presenter.View, error) {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:      observer.AnalysisFailed,
			Model:          modelKey,
			ProcessingTime: time.Since(start),
			ErrorType:      errorType(err),
			ErrorMessage:   apperrors.Reason(err),
		})
		return presenter.PresentFailure(apperrors.Reason(err), modelKey), err
	}

	payload, err := load()
	if err != nil {
		s.publish(ctx, observer.AnalysisEvent{
			EventType:    observer.ImageIngestFailed,
			Model:        modelKey,
			ErrorType:    errorType(err),
			ErrorMessage: apperrors.Reason(err),
		})
		return fail(err)
	}
	s.publish(ctx, observer.AnalysisEvent{
		EventType: observer.ImageIngested,
		Model:     modelKey,
		Metadata: map[string]interface{}{
			"width":      payload.Width,
			"height":     payload.Height,
			"jpeg_bytes": len(payload.JPEG),
		},
	})

	credential := s.credential(sess)
	if credential == "" {
		return fail(apperrors.NewUnauthorizedError("API key is required to use this app", nil))
	}

	model, err := s.deps.Registry.Resolve(modelKey)
	if err != nil {
		return fail(err)
	}

	req := models.NewAnalysisRequest(payload.JPEG, s.deps.Instructions.Instruction(), model.ID)

	callCtx := ctx
	if s.deps.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.deps.Timeout)
		defer cancel()
	}

	result := s.deps.Client.Analyze(callCtx, req, credential)
	if !result.OK() {
		return fail(result.Err())
	}

	detections, err := s.deps.Interpreter.Interpret(result.RawText())
	if err != nil {
		return fail(err)
	}

	s.publish(ctx, observer.AnalysisEvent{
		EventType:      observer.AnalysisCompleted,
		Model:          modelKey,
		ProcessingTime: time.Since(start),
		Success:        true,
		Detections:     len(detections),
		Metadata: map[string]interface{}{
			"strategy": s.deps.Instructions.GetCurrentStrategy(),
		},
	})
	return presenter.Present(detections, modelKey), nil
}

func (s *analysisService) publish(ctx context.Context, event observer.AnalysisEvent) {
	s.deps.Publisher.NotifyObservers(ctx, event)
}

func errorType(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Type)
	}
	return string(apperrors.ErrorTypeInternal)
}
