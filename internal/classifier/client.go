package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/plantdoc/internal/diagnosis"
	"github.com/example/plantdoc/internal/logging"
)

const (
	// FormField is the multipart field the service reads the image from.
	FormField = "image"

	defaultFilename    = "upload"
	defaultContentType = "application/octet-stream"
)

// HTTPClient talks to the classification service over its HTTP contract.
type HTTPClient struct {
	endpoint       string
	healthEndpoint string
	httpClient     *http.Client
	logger         *zap.Logger
	tracer         trace.Tracer
}

// Option customises an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.httpClient = c }
}

// WithTimeout bounds every call. Zero keeps the default of no timeout.
func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) {
		if d > 0 {
			h.httpClient = &http.Client{Transport: h.httpClient.Transport, Timeout: d}
		}
	}
}

// WithHealthEndpoint sets the URL probed by Health.
func WithHealthEndpoint(url string) Option {
	return func(h *HTTPClient) { h.healthEndpoint = url }
}

// NewHTTPClient returns a client posting to endpoint, e.g. http://localhost:5000/predict.
func NewHTTPClient(endpoint string, logger *zap.Logger, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		logger:     logger.Named("classifier"),
		tracer:     otel.Tracer("plantdoc/classifier"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Predict uploads the image once and decodes the diagnosis. There is no retry.
func (c *HTTPClient) Predict(ctx context.Context, img Image) (*diagnosis.Result, error) {
	ctx, span := c.tracer.Start(ctx, "classifier.Predict")
	defer span.End()
	span.SetAttributes(attribute.Int("image.bytes", len(img.Data)))

	body, contentType, err := encodeMultipart(img)
	if err != nil {
		span.RecordError(err)
		return nil, logging.NewOperationError("classifier.encode_multipart", "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		span.RecordError(err)
		return nil, logging.NewOperationError("classifier.new_request", "", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := &TransferError{Err: err}
		span.RecordError(terr)
		span.SetStatus(codes.Error, "transfer failed")
		c.logger.Warn("classification request failed", zap.Error(err), zap.String("endpoint", c.endpoint))
		return nil, terr
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		terr := &TransferError{StatusCode: resp.StatusCode}
		span.SetStatus(codes.Error, terr.Error())
		c.logger.Warn("classification service rejected request", zap.Int("status", resp.StatusCode))
		return nil, terr
	}

	var result diagnosis.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &result, nil
}

// Health probes the service health endpoint.
func (c *HTTPClient) Health(ctx context.Context) error {
	if c.healthEndpoint == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthEndpoint, nil)
	if err != nil {
		return logging.NewOperationError("classifier.health", "", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransferError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransferError{StatusCode: resp.StatusCode}
	}
	return nil
}

func encodeMultipart(img Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := img.Filename
	if filename == "" {
		filename = defaultFilename
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", multipartDisposition(filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func multipartDisposition(filename string) string {
	return fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FormField, quoteEscaper.Replace(filename))
}
