package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// maxResponseBody caps how much of a receiver response is retained for
// observers.
const maxResponseBody = 64 * 1024

// HTTPConfig configures an HTTPAdapter.
type HTTPConfig struct {
	// Target is the receiver endpoint for both probe and send.
	Target string
	// Method is the send verb. Defaults to POST.
	Method string
	// FieldPrefix prefixes every wire field name. Defaults to "resumable".
	FieldPrefix string
	// ConnectionRetries sets transport-level retries for connection failures.
	// Defaults to 0: the engine owns the chunk retry policy, so a failed
	// request normally surfaces immediately as a transient error.
	ConnectionRetries int
	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
}

// HTTPAdapter speaks the resumable wire format: an existence probe is a GET
// carrying the chunk fields as query parameters, a transmission is a
// multipart/form-data request carrying the same fields plus the byte range as
// a file part.
type HTTPAdapter struct {
	target      string
	method      string
	fieldPrefix string
	client      *retryablehttp.Client
}

// NewHTTPAdapter creates an HTTP adapter for the given configuration.
func NewHTTPAdapter(cfg HTTPConfig) (*HTTPAdapter, error) {
	if cfg.Target == "" {
		return nil, fmt.Errorf("http adapter: target URL is required")
	}
	if _, err := url.Parse(cfg.Target); err != nil {
		return nil, fmt.Errorf("http adapter: invalid target URL: %w", err)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	prefix := cfg.FieldPrefix
	if prefix == "" {
		prefix = "resumable"
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.ConnectionRetries
	client.Logger = logrus.StandardLogger()
	if cfg.HTTPClient != nil {
		client.HTTPClient = cfg.HTTPClient
	}

	logrus.WithFields(logrus.Fields{
		"function":     "NewHTTPAdapter",
		"target":       cfg.Target,
		"method":       method,
		"field_prefix": prefix,
	}).Info("HTTP transport adapter created")

	return &HTTPAdapter{
		target:      cfg.Target,
		method:      method,
		fieldPrefix: prefix,
		client:      client,
	}, nil
}

// wireFields maps chunk metadata to the resumable field names, merged with
// any caller-supplied query parameters.
func (a *HTTPAdapter) wireFields(meta ChunkMeta) map[string]string {
	p := a.fieldPrefix
	fields := map[string]string{
		p + "ChunkNumber":      strconv.Itoa(meta.Number),
		p + "TotalChunks":      strconv.Itoa(meta.File.TotalChunks),
		p + "ChunkSize":        strconv.FormatInt(meta.File.ChunkSize, 10),
		p + "CurrentChunkSize": strconv.FormatInt(meta.CurrentSize, 10),
		p + "TotalSize":        strconv.FormatInt(meta.File.Size, 10),
		p + "Identifier":       meta.File.Identifier,
		p + "Filename":         meta.File.Name,
		p + "RelativePath":     meta.File.RelativePath,
	}
	for k, v := range meta.Query {
		fields[k] = v
	}
	return fields
}

// Probe issues a GET with the chunk fields as query parameters. A 2xx status
// means the receiver already stores the chunk.
func (a *HTTPAdapter) Probe(ctx context.Context, meta ChunkMeta) (bool, error) {
	u, err := url.Parse(a.target)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	q := u.Query()
	for k, v := range a.wireFields(meta) {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	for k, v := range meta.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return false, &PermanentError{StatusCode: resp.StatusCode, Message: "probe rejected"}
	default:
		return false, fmt.Errorf("%w: unexpected status %d", ErrProbeFailed, resp.StatusCode)
	}
}

// Send posts the chunk as multipart/form-data. Progress is reported as the
// request body drains into the connection.
func (a *HTTPAdapter) Send(ctx context.Context, meta ChunkMeta, body io.Reader, onProgress func(sent int64)) (*Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range a.wireFields(meta) {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("http adapter: write field %q: %w", k, err)
		}
	}
	part, err := mw.CreateFormFile("file", meta.File.Name)
	if err != nil {
		return nil, fmt.Errorf("http adapter: create file part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return nil, fmt.Errorf("http adapter: buffer chunk body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("http adapter: finalize multipart body: %w", err)
	}

	reqBody := &countingReader{r: bytes.NewReader(buf.Bytes()), onProgress: onProgress}
	req, err := retryablehttp.NewRequestWithContext(ctx, a.method, a.target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("http adapter: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.ContentLength = int64(buf.Len())
	for k, v := range meta.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http adapter: send chunk %d of %s: %w", meta.Number, meta.File.Identifier, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("http adapter: read response: %w", err)
	}

	return &Result{StatusCode: resp.StatusCode, Body: string(respBody)}, nil
}

// countingReader reports cumulative bytes read to a progress callback.
type countingReader struct {
	r          io.Reader
	sent       int64
	onProgress func(sent int64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.sent += int64(n)
		if c.onProgress != nil {
			c.onProgress(c.sent)
		}
	}
	return n, err
}
