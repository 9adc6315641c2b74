package models

// AnalyzeImageRequest is the JSON form of an analysis upload.
// Image may be plain base64 or a data URL.
type AnalyzeImageRequest struct {
	Image string `json:"image" binding:"required"`
	Model string `json:"model,omitempty"`
}

// SelectModelRequest switches the session's model
type SelectModelRequest struct {
	Model string `json:"model" binding:"required"`
}

// CredentialRequest stores a runtime API key for the session
type CredentialRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// ModelInfo describes one selectable vision model
type ModelInfo struct {
	Key   string `json:"key" yaml:"key"`
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// ModelsResponse lists the selectable models for a session
type ModelsResponse struct {
	Models          []ModelInfo `json:"models"`
	Selected        string      `json:"selected"`
	NeedsCredential bool        `json:"needs_credential"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
