// Package sheets talks to the spreadsheet-backed remote endpoint. The
// endpoint is a single URL that dispatches on an "action" field; reads
// return JSON arrays, writes are opaque (no structured success or error
// body is ever consumed).
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"prayerlog/internal/model"
)

const (
	ActionGetStudents      = "getStudents"
	ActionGetAttendance    = "getAttendance"
	ActionSaveStudents     = "saveStudents"
	ActionAddAttendance    = "addAttendance"
	ActionDeleteAttendance = "deleteAttendance"
	ActionUpdateAttendance = "updateAttendance"
)

// Client calls the remote sheet endpoint.
type Client struct {
	URL  string
	HTTP *http.Client
	Skip bool
}

// New creates a client. Every call is bounded by timeout; exceeding it
// is treated the same as any other network failure. skip short-circuits
// all calls for dev and tests.
func New(url string, timeout time.Duration, skip bool) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		URL:  url,
		Skip: skip,
		HTTP: &http.Client{Timeout: timeout},
	}
}

// FetchStudents reads the remote roster.
func (c *Client) FetchStudents(ctx context.Context) ([]model.Student, error) {
	if c.Skip {
		return nil, nil
	}
	var out []model.Student
	if err := c.get(ctx, ActionGetStudents, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchAttendance reads the remote attendance set.
func (c *Client) FetchAttendance(ctx context.Context) ([]model.Record, error) {
	if c.Skip {
		return nil, nil
	}
	var out []model.Record
	if err := c.get(ctx, ActionGetAttendance, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveStudents pushes the whole roster.
func (c *Client) SaveStudents(ctx context.Context, students []model.Student) error {
	payload, err := json.Marshal(students)
	if err != nil {
		return err
	}
	return c.Post(ctx, ActionSaveStudents, payload)
}

// AddAttendance pushes one new record.
func (c *Client) AddAttendance(ctx context.Context, rec model.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.Post(ctx, ActionAddAttendance, payload)
}

// DeleteAttendance removes a record by id.
func (c *Client) DeleteAttendance(ctx context.Context, id string) error {
	payload, err := json.Marshal(map[string]string{"id": id})
	if err != nil {
		return err
	}
	return c.Post(ctx, ActionDeleteAttendance, payload)
}

// UpdateAttendanceStatus changes the status of an existing record.
func (c *Client) UpdateAttendanceStatus(ctx context.Context, id string, status model.Status) error {
	payload, err := json.Marshal(map[string]string{"id": id, "status": string(status)})
	if err != nil {
		return err
	}
	return c.Post(ctx, ActionUpdateAttendance, payload)
}

func (c *Client) get(ctx context.Context, action string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL+"?action="+action, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("sheet request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sheet error %s: %s", resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sheet response: %w", err)
	}
	return nil
}

// Post issues an opaque write: {action, payload} goes out, the response
// body is discarded and the status is not inspected. Only transport
// failures are surfaced, matching the endpoint's no-error-channel
// contract. Used directly by the outbox worker for replayed writes.
func (c *Client) Post(ctx context.Context, action string, payload json.RawMessage) error {
	if c.Skip {
		return nil
	}
	body, err := json.Marshal(struct {
		Action  string          `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}{Action: action, Payload: payload})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("sheet request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
