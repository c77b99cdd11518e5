// Package queueclient talks to the remote queue server over HTTP. Each call
// is bounded by the client timeout and is never retried; failures come back
// as the apperror upstream variants.
package queueclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/ride-queue-auth/internal/apperror"
	"github.com/iliyamo/ride-queue-auth/internal/model"
)

const DefaultTimeout = 10 * time.Second

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type queueRequest struct {
	UserID     uint64           `json:"userId"`
	RideID     uint64           `json:"rideId"`
	TicketType model.TicketType `json:"ticketType"`
}

// Enqueue asks the queue server to place the user in the ride's queue.
func (c *Client) Enqueue(ctx context.Context, userID, rideID uint64, tt model.TicketType) (model.EnqueueResult, error) {
	var out model.EnqueueResult
	err := c.do(ctx, http.MethodPost, "/api/queue/enqueue", queueRequest{userID, rideID, tt}, &out)
	return out, err
}

// Cancel removes the user from the ride's queue.
func (c *Client) Cancel(ctx context.Context, userID, rideID uint64, tt model.TicketType) error {
	return c.do(ctx, http.MethodPost, "/api/queue/cancel", queueRequest{userID, rideID, tt}, nil)
}

// Status lists every queue the user is standing in.
func (c *Client) Status(ctx context.Context, userID uint64) ([]model.QueueStatusItem, error) {
	var out struct {
		Items []model.QueueStatusItem `json:"items"`
	}
	q := url.Values{"userId": {strconv.FormatUint(userID, 10)}}
	if err := c.do(ctx, http.MethodGet, "/api/queue/status/all?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// RidesInfo returns the wait times of every ride.
func (c *Client) RidesInfo(ctx context.Context) ([]model.RideQueueInfo, error) {
	var out struct {
		Rides []model.RideQueueInfo `json:"rides"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/queue/rides/info", nil, &out); err != nil {
		return nil, err
	}
	return out.Rides, nil
}

// RideInfo returns the wait times of one ride.
func (c *Client) RideInfo(ctx context.Context, rideID uint64) (model.RideQueueInfo, error) {
	var out model.RideQueueInfo
	path := "/api/queue/rides/" + strconv.FormatUint(rideID, 10) + "/info"
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// do sends one request. A nil target means the response body is ignored.
func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperror.ErrUpstreamUnexpectedResponse.Wrap(
			fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, snippet(respBody)))
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, target); err != nil {
		return apperror.ErrUpstreamUnexpectedResponse.Wrap(fmt.Errorf("decode %s: %w", path, err))
	}
	return nil
}

// classify maps a transport error to timeout or unreachable.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrUpstreamTimeout.Wrap(err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return apperror.ErrUpstreamTimeout.Wrap(err)
	}
	return apperror.ErrUpstreamUnreachable.Wrap(err)
}

func snippet(b []byte) string {
	const maxSnippet = 200
	s := strings.TrimSpace(string(b))
	if len(s) > maxSnippet {
		return s[:maxSnippet] + "..."
	}
	return s
}
