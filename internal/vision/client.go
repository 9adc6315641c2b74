package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	apperrors "go-vision-lens/internal/errors"
	"go-vision-lens/internal/logger"
	"go-vision-lens/pkg/models"
)

// EmptyReplyMessage is shown when the API answers without any text
const EmptyReplyMessage = "No results returned from API"

const generatePath = "/{version}/models/{model}:generateContent"

// ClientOptions configures the vision client
type ClientOptions struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	// Transport is used for every request when set
	Transport http.RoundTripper
}

// Client performs single generateContent calls. It never retries.
type Client struct {
	http    *resty.Client
	version string
	host    string
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewClient creates a vision client
func NewClient(opts ClientOptions) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid vision base URL %q", opts.BaseURL)
	}
	if opts.APIVersion == "" {
		opts.APIVersion = "v1"
	}

	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetLogger(logger.Logger)
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}
	if opts.Transport != nil {
		rc.SetTransport(opts.Transport)
	}

	return &Client{
		http:    rc,
		version: opts.APIVersion,
		host:    base.Hostname(),
	}, nil
}

// Host returns the vision API host name
func (c *Client) Host() string {
	return c.host
}

// Analyze sends the request with the given credential and returns the raw
// reply text or a typed failure. The credential never appears in the
// returned error.
func (c *Client) Analyze(ctx context.Context, req models.AnalysisRequest, credential string) models.AnalysisResult {
	if strings.TrimSpace(credential) == "" {
		return models.Failure(apperrors.NewUnauthorizedError("API key is required to use this app", nil))
	}
	if len(req.ImageBytes) == 0 {
		return models.Failure(apperrors.NewDecodeError("No image provided", nil))
	}
	if req.ModelID == "" {
		return models.Failure(apperrors.NewValidationError("No model selected", nil))
	}

	body := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: req.InstructionText},
				{InlineData: &inlineData{
					MimeType: models.JPEGMimeType,
					Data:     base64.StdEncoding.EncodeToString(req.ImageBytes),
				}},
			},
		}},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"version": c.version,
			"model":   req.ModelID,
		}).
		SetQueryParam("key", credential).
		SetBody(body).
		Post(generatePath)
	if err != nil {
		return models.Failure(transportError(ctx, err, credential))
	}

	var parsed generateResponse
	parseErr := json.Unmarshal(resp.Body(), &parsed)

	if parsed.Error != nil && strings.TrimSpace(parsed.Error.Message) != "" {
		return models.Failure(apperrors.NewNetworkError(
			redact(parsed.Error.Message, credential),
			fmt.Errorf("vision API status %d", resp.StatusCode()),
		))
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return models.Failure(apperrors.NewNetworkError(
			fmt.Sprintf("vision API returned status %d", resp.StatusCode()), nil))
	}
	if parseErr != nil {
		return models.Failure(apperrors.NewEmptyResponseError(EmptyReplyMessage, parseErr))
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return models.Failure(apperrors.NewEmptyResponseError(EmptyReplyMessage, nil))
	}

	text := parsed.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return models.Failure(apperrors.NewEmptyResponseError(EmptyReplyMessage, nil))
	}
	return models.Success(text)
}

// transportError classifies a failed round trip. The request URL carries the
// credential, so *url.Error is unwrapped and the rest is redacted.
func transportError(ctx context.Context, err error, credential string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("Vision API request timed out", nil)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return apperrors.NewTimeoutError("Vision API request timed out", nil)
		}
		err = urlErr.Err
	}
	if errors.Is(err, context.Canceled) {
		return apperrors.NewNetworkError("Request was cancelled", nil)
	}
	return apperrors.NewNetworkError("Could not reach the vision API", errors.New(redact(err.Error(), credential)))
}

func redact(s, credential string) string {
	if credential == "" {
		return s
	}
	s = strings.ReplaceAll(s, credential, "[redacted]")
	return strings.ReplaceAll(s, url.QueryEscape(credential), "[redacted]")
}
