package trusthire

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/trusthire/trusthire/internal/result"
	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"

	maxErrorBody = 64 * 1024
)

type formFile struct {
	field string
	name  string
	data  []byte
}

func (c *Client) postMultipart(ctx context.Context, op, url string, data map[string]string, file *formFile) (map[string]any, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	if file != nil {
		part, err := w.CreateFormFile(file.field, file.name)
		if err != nil {
			return nil, &TransportError{Op: op, URL: url, Err: err}
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, &TransportError{Op: op, URL: url, Err: err}
		}
	}

	for key, val := range data {
		if err := w.WriteField(key, val); err != nil {
			return nil, &TransportError{Op: op, URL: url, Err: err}
		}
	}

	if err := w.Close(); err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &b)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(op, req)
}

func (c *Client) postJSON(ctx context.Context, op, url string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	return c.do(op, req)
}

func (c *Client) getJSON(ctx context.Context, op, url string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}

	return c.do(op, req)
}

// do sends the request and decodes a JSON object body. Any failure is
// reported as a TransportError and recorded in metrics.
func (c *Client) do(op string, req *http.Request) (map[string]any, error) {
	start := time.Now()

	raw, err := c.roundTrip(op, c.setHeaders(req))

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.Metrics.ObserveRequest(op, outcome, time.Since(start))

	return raw, err
}

func (c *Client) roundTrip(op string, req *http.Request) (map[string]any, error) {
	url := req.URL.String()

	c.logger.Debug("make request", zap.String("op", op), zap.String("url", url))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail := errorDetail(resp)
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Status: resp.Status, Detail: detail}
	}

	reader, err := bodyReader(resp)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	defer reader.Close()

	raw, err := result.Decode(reader)
	if err != nil {
		return nil, &TransportError{Op: op, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: %w", ErrUnexpectedShape, err)}
	}

	return raw, nil
}

func bodyReader(resp *http.Response) (io.ReadCloser, error) {
	if resp.Header.Get("Content-Encoding") != contentEncoding {
		return io.NopCloser(resp.Body), nil
	}
	return gzip.NewReader(resp.Body)
}

// errorDetail extracts the service's explanation from an error body, either
// {"detail": "..."} or a list of {"msg": "..."} entries. Anything else yields
// an empty string.
func errorDetail(resp *http.Response) string {
	reader, err := bodyReader(&http.Response{
		Header: resp.Header,
		Body:   io.NopCloser(io.LimitReader(resp.Body, maxErrorBody)),
	})
	if err != nil {
		return ""
	}
	defer reader.Close()

	raw, err := result.Decode(reader)
	if err != nil {
		return ""
	}

	switch detail := raw["detail"].(type) {
	case string:
		return strings.TrimSpace(detail)
	case []any:
		messages := make([]string, 0, len(detail))
		for _, item := range detail {
			switch v := item.(type) {
			case string:
				messages = append(messages, v)
			case map[string]any:
				if msg, ok := v["msg"].(string); ok {
					messages = append(messages, msg)
				}
			}
		}
		return strings.TrimSpace(strings.Join(messages, "; "))
	default:
		return ""
	}
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}
