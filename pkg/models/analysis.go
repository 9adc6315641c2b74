package models

import (
	apperrors "go-vision-lens/internal/errors"
)

// JPEGMimeType is the only payload type sent to the vision API
const JPEGMimeType = "image/jpeg"

// AnalysisRequest is built once per user-initiated analysis and consumed once
// by the detection client.
type AnalysisRequest struct {
	ImageBytes      []byte
	InstructionText string
	ModelID         string
}

// NewAnalysisRequest copies the image so later mutation of the caller's
// buffer cannot change the request.
func NewAnalysisRequest(image []byte, instruction, modelID string) AnalysisRequest {
	buf := make([]byte, len(image))
	copy(buf, image)
	return AnalysisRequest{
		ImageBytes:      buf,
		InstructionText: instruction,
		ModelID:         modelID,
	}
}

// AnalysisResult is either Success(rawText) or Failure(err)
type AnalysisResult struct {
	rawText string
	err     error
}

// Success wraps the raw reply text of the vision model
func Success(rawText string) AnalysisResult {
	return AnalysisResult{rawText: rawText}
}

// Failure wraps the reason an analysis could not produce reply text
func Failure(err error) AnalysisResult {
	if err == nil {
		err = apperrors.NewInternalError("analysis failed without a reason", nil)
	}
	return AnalysisResult{err: err}
}

// OK reports whether r is a Success
func (r AnalysisResult) OK() bool {
	return r.err == nil
}

// RawText returns the reply text of a Success
func (r AnalysisResult) RawText() string {
	return r.rawText
}

// Err returns the error of a Failure, nil otherwise
func (r AnalysisResult) Err() error {
	return r.err
}

// Reason returns the user-facing failure reason, empty for a Success
func (r AnalysisResult) Reason() string {
	if r.err == nil {
		return ""
	}
	return apperrors.Reason(r.err)
}
