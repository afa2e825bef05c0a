package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/phrazzld/fetchstore/internal/domain"
	"github.com/phrazzld/fetchstore/internal/platform/logger"
	"github.com/phrazzld/fetchstore/internal/redact"

	// Registers the WebP decoder with image.Decode, which imaging.Decode uses.
	_ "golang.org/x/image/webp"
)

// Common errors returned by the fetcher
var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = fmt.Errorf("%w: invalid image URL", domain.ErrNetwork)

	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = fmt.Errorf("%w: unexpected response status", domain.ErrNetwork)

	// ErrTooLarge is returned when the body exceeds the configured limit.
	ErrTooLarge = fmt.Errorf("%w: response body exceeds size limit", domain.ErrDecode)

	// ErrNotAnImage is returned when the body is not image content.
	ErrNotAnImage = fmt.Errorf("%w: response is not an image", domain.ErrDecode)
)

// Fetcher retrieves and decodes the image at a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (image.Image, error)
}

// Config holds configuration for the HTTP fetcher.
type Config struct {
	// Timeout bounds the whole request including the body read.
	// Zero means no timeout.
	Timeout time.Duration

	// MaxBytes caps the response body size. Zero means DefaultMaxBytes.
	MaxBytes int64

	// UserAgent is sent with every request when non-empty.
	UserAgent string
}

// DefaultMaxBytes is the body size limit used when Config.MaxBytes is zero.
const DefaultMaxBytes int64 = 32 << 20

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		MaxBytes:  DefaultMaxBytes,
		UserAgent: "fetchstore/1.0",
	}
}

// HTTPFetcher implements Fetcher with a single HTTP GET.
type HTTPFetcher struct {
	client *http.Client
	config Config
}

// New creates an HTTPFetcher using a pooled client from go-cleanhttp.
func New(config Config) *HTTPFetcher {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = config.Timeout
	return NewWithClient(client, config)
}

// NewWithClient creates an HTTPFetcher that uses the given client. The client's
// own Timeout is left as is.
func NewWithClient(client *http.Client, config Config) *HTTPFetcher {
	if config.MaxBytes <= 0 {
		config.MaxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{
		client: client,
		config: config,
	}
}

// Fetch performs one GET to rawURL, reads the full body and decodes it as an image.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (image.Image, error) {
	log := logger.FromContext(ctx).With("url", redact.URL(rawURL))

	target, err := parseImageURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		log.Debug("image request failed", "error", redact.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := f.readBody(resp.Body)
	if err != nil {
		return nil, err
	}

	img, err := decode(body)
	if err != nil {
		return nil, err
	}

	log.Debug("image fetched",
		"bytes", len(body),
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"duration_ms", time.Since(start).Milliseconds())

	return img, nil
}

// readBody reads at most MaxBytes. A read failure mid-body is a network error.
func (f *HTTPFetcher) readBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, f.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", domain.ErrNetwork, err)
	}
	if int64(len(data)) > f.config.MaxBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, f.config.MaxBytes)
	}
	return data, nil
}

// decode sniffs the content type before decoding so that HTML error pages and
// the like are reported as non-image content rather than as corrupt images.
func decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrNotAnImage)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAnImage, mtype.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDecode, mtype.String(), err)
	}
	return img, nil
}

// parseImageURL accepts only absolute http and https URLs with a host.
func parseImageURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: not an absolute URL", ErrInvalidURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	return u, nil
}
