package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-pm/internal/audit"
	"github.com/nerrad567/gray-logic-pm/internal/record"
	"github.com/nerrad567/gray-logic-pm/internal/supervisor"
)

// ErrDaemonUnreachable is returned when no daemon answers at the address.
var ErrDaemonUnreachable = errors.New("api: daemon is not reachable")

// DefaultClientTimeout bounds a single CLI request. Stop can wait on a
// process tree, so it sits well above the default stop timeout.
const DefaultClientTimeout = 60 * time.Second

// Client calls the daemon's control surface.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the daemon listening on addr (host:port).
func NewClient(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultClientTimeout
	}
	return &Client{
		base: "http://" + addr + "/api/v1",
		http: &http.Client{Timeout: timeout},
	}
}

// Ping asks the daemon whether it is up.
func (c *Client) Ping(ctx context.Context) (supervisor.PingInfo, error) {
	var info supervisor.PingInfo
	err := c.do(ctx, http.MethodGet, "/ping", nil, &info)
	return info, err
}

// Create stores a new record.
func (c *Client) Create(ctx context.Context, def record.Definition, rewrite bool) (supervisor.Outcome, error) {
	var resp OutcomesResponse
	path := "/processes?rewrite=" + strconv.FormatBool(rewrite)
	if err := c.do(ctx, http.MethodPost, path, def, &resp); err != nil {
		return supervisor.Outcome{}, err
	}
	if len(resp.Outcomes) != 1 {
		return supervisor.Outcome{}, fmt.Errorf("api: create returned %d outcomes", len(resp.Outcomes))
	}
	return resp.Outcomes[0], nil
}

// List returns the records matched by token with their liveness.
func (c *Client) List(ctx context.Context, token string) ([]supervisor.Entry, error) {
	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, "/processes/"+url.PathEscape(token), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Processes, nil
}

// Status returns the records matched by token merged with live metrics.
func (c *Client) Status(ctx context.Context, token string) ([]supervisor.StatusRow, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status/"+url.PathEscape(token), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Processes, nil
}

// Dispatch runs a lifecycle operation on the records matched by token.
func (c *Client) Dispatch(ctx context.Context, op, token string) ([]supervisor.Outcome, error) {
	var resp OutcomesResponse
	path := "/processes/" + url.PathEscape(token) + "/" + url.PathEscape(op)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Outcomes, nil
}

// History returns stored outcomes matching filter, most recent first.
func (c *Client) History(ctx context.Context, filter audit.Filter) (*audit.ListResult, error) {
	q := url.Values{}
	if filter.RecordID != nil {
		q.Set("id", strconv.Itoa(*filter.RecordID))
	}
	if filter.Op != "" {
		q.Set("op", filter.Op)
	}
	if filter.Severity != "" {
		q.Set("severity", filter.Severity)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	path := "/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result audit.ListResult
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do sends one request and decodes the JSON answer into out. Non-2xx
// answers are returned as *Error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encoding request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("api: building request: %w", err)
	}
	req.Header.Set(requestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decoding response: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the daemon.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
