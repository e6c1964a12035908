// Package client talks to a running form-receipts server. Every call
// returns its result or an *api.Error describing why it failed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atomicdeploy/form-receipts/pkg/api"
	"github.com/atomicdeploy/form-receipts/pkg/store"
	"github.com/atomicdeploy/form-receipts/pkg/submission"
)

// Client is a form-receipts API client. It satisfies store.Store, so CLI
// commands work the same against a local store or a remote server.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ store.Store = (*Client)(nil)

// New creates a client for the server at baseURL, e.g.
// "https://forms.example.com". The scheme is required.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: missing host", baseURL)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// doRequest performs a request and returns the response body of a 2xx
// response. Anything else becomes an *api.Error.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, *http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, &api.Error{Kind: api.KindTransport, Message: api.MsgNoResponse, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, &api.Error{Kind: api.KindTransport, Status: resp.StatusCode, Message: api.MsgNoResponse, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp, responseError(resp.StatusCode, data)
	}
	return data, resp, nil
}

// responseError maps a failed response to an *api.Error.
func responseError(status int, body []byte) *api.Error {
	var env api.Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Message == "" {
		env.Message = http.StatusText(status)
	}

	e := &api.Error{Status: status, Message: env.Message}
	switch {
	case status == http.StatusBadRequest:
		e.Kind = api.KindValidation
		e.Details = env.Errors
		e.Err = &submission.ValidationError{Messages: env.Errors}
	case status == http.StatusNotFound:
		e.Kind = api.KindNotFound
		e.Err = store.ErrNotFound
	case status >= 500:
		e.Kind = api.KindServer
		if env.Error != "" {
			e.Details = []string{env.Error}
		}
	default:
		e.Kind = api.KindUnexpected
	}
	return e
}

// decodeData unpacks the data member of a success envelope into v.
func decodeData(body []byte, v interface{}) error {
	var env api.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return &api.Error{Kind: api.KindUnexpected, Message: "malformed response", Err: err}
	}
	if !env.Success {
		return &api.Error{Kind: api.KindUnexpected, Message: env.Message}
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &api.Error{Kind: api.KindUnexpected, Message: "malformed response data", Err: err}
	}
	return nil
}

// Create submits a new form entry.
func (c *Client) Create(ctx context.Context, in submission.Input) (submission.Submission, error) {
	var sub submission.Submission
	body, _, err := c.doRequest(ctx, http.MethodPost, "/api/form/submit", in)
	if err != nil {
		return sub, err
	}
	err = decodeData(body, &sub)
	return sub, err
}

// List returns all submissions, newest first.
func (c *Client) List(ctx context.Context) ([]submission.Submission, error) {
	var subs []submission.Submission
	body, _, err := c.doRequest(ctx, http.MethodGet, "/api/form/submissions", nil)
	if err != nil {
		return nil, err
	}
	if err := decodeData(body, &subs); err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return subs, nil
}

// Get returns one submission. A missing id is an *api.Error of kind
// not_found that also matches store.ErrNotFound.
func (c *Client) Get(ctx context.Context, id string) (submission.Submission, error) {
	var sub submission.Submission
	body, _, err := c.doRequest(ctx, http.MethodGet, "/api/form/download/"+url.PathEscape(id), nil)
	if err != nil {
		return sub, err
	}
	err = decodeData(body, &sub)
	return sub, err
}

// Receipt downloads the PDF receipt of a submission.
func (c *Client) Receipt(ctx context.Context, id string) ([]byte, error) {
	body, resp, err := c.doRequest(ctx, http.MethodGet, "/api/form/receipt/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		return nil, &api.Error{Kind: api.KindUnexpected, Status: resp.StatusCode, Message: fmt.Sprintf("unexpected content type %q", ct)}
	}
	return body, nil
}

// Close implements store.Store.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// IsTransport reports whether err means the server could not be reached.
func IsTransport(err error) bool {
	var apiErr *api.Error
	return errors.As(err, &apiErr) && apiErr.Kind == api.KindTransport
}
