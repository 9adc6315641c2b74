package ingest

import (
	"bytes"
	"encoding/base64"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	// WebP is not registered by imaging
	_ "golang.org/x/image/webp"

	apperrors "go-vision-lens/internal/errors"
	"go-vision-lens/pkg/models"
)

// Payload is a bounded JPEG ready for transmission
type Payload struct {
	JPEG     []byte
	Base64   string
	Width    int
	Height   int
	MIMEType string
}

// Ingester decodes user images and bounds them for the vision API
type Ingester struct {
	opts Options
}

// NewIngester creates an ingester; zero fields in opts take defaults
func NewIngester(opts Options) *Ingester {
	return &Ingester{opts: opts.normalized()}
}

// Options returns the effective options
func (in *Ingester) Options() Options {
	return in.opts
}

// Process decodes raw image bytes, downscales them into the configured
// bounds and encodes the result as JPEG.
func (in *Ingester) Process(data []byte) (*Payload, error) {
	if len(data) == 0 {
		return nil, apperrors.NewDecodeError("No image provided", nil)
	}

	if in.opts.MaxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, apperrors.NewDecodeError("File is not a supported image", err)
		}
		if cfg.Width*cfg.Height > in.opts.MaxPixels {
			return nil, apperrors.NewDecodeError("Image dimensions are too large", nil)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewDecodeError("File is not a supported image", err)
	}

	bounds := img.Bounds()
	w, h := FitDimensions(bounds.Dx(), bounds.Dy(), in.opts.MaxWidth, in.opts.MaxHeight)
	if w != bounds.Dx() || h != bounds.Dy() {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(in.opts.Quality)); err != nil {
		return nil, apperrors.NewInternalError("Failed to encode image", err)
	}

	return &Payload{
		JPEG:     buf.Bytes(),
		Base64:   base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:    w,
		Height:   h,
		MIMEType: models.JPEGMimeType,
	}, nil
}

// ProcessBase64 accepts plain base64 or a data URL
func (in *Ingester) ProcessBase64(encoded string) (*Payload, error) {
	raw := StripDataURL(strings.TrimSpace(encoded))
	if raw == "" {
		return nil, apperrors.NewDecodeError("No image provided", nil)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		// some encoders drop padding
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "=")); err != nil {
			return nil, apperrors.NewDecodeError("Image data is not valid base64", err)
		}
	}
	return in.Process(data)
}

// StripDataURL removes a "data:<mime>;base64," prefix if present
func StripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// FitDimensions scales w x h into maxW x maxH keeping the aspect ratio. The
// width bound is applied first, then the height bound. Images are never
// enlarged and neither side drops below 1.
func FitDimensions(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	fw, fh := float64(w), float64(h)
	if maxW > 0 && fw > float64(maxW) {
		fh *= float64(maxW) / fw
		fw = float64(maxW)
	}
	if maxH > 0 && fh > float64(maxH) {
		fw *= float64(maxH) / fh
		fh = float64(maxH)
	}
	return max(1, int(math.Round(fw))), max(1, int(math.Round(fh)))
}
