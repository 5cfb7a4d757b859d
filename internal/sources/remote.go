// Package sources holds the lookup.Source adapters the resolver consults:
// the remote status API, the document store and the Redis-backed local
// table. Build assembles them in the configured order.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tbourn/visa-track-backend/internal/lookup"
)

// maxRemoteBody caps how much of a remote response is read.
const maxRemoteBody = 1 << 20

// Remote queries the external status API with GET ?trackId=..&dob=..
type Remote struct {
	base    string
	client  *http.Client
	timeout time.Duration
}

// NewRemote returns an adapter for baseURL. Every Find is bounded by
// timeout, whatever client is passed; a nil client uses http.DefaultClient.
func NewRemote(baseURL string, timeout time.Duration, client *http.Client) *Remote {
	if client == nil {
		client = http.DefaultClient
	}
	return &Remote{base: baseURL, client: client, timeout: timeout}
}

func (r *Remote) Name() string { return "remote" }

// Find returns (nil, nil) when the API answers without a status.
func (r *Remote) Find(ctx context.Context, trackingID, dob string) (*lookup.RawRecord, error) {
	u, err := url.Parse(r.base)
	if err != nil {
		return nil, fmt.Errorf("remote url: %w", err)
	}
	q := u.Query()
	q.Set("trackId", trackingID)
	q.Set("dob", dob)
	u.RawQuery = q.Encode()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxRemoteBody))
		return nil, fmt.Errorf("remote status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return nil, fmt.Errorf("remote read: %w", err)
	}

	rec, err := decodeRemote(body)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if rec.TrackingID == "" {
		rec.TrackingID = trackingID
	}
	rec.DOB = dob
	return rec, nil
}

// remotePayload covers the object shapes the API has used:
// {status, trackingId, date} and {data: {status, trackingId, date}}.
type remotePayload struct {
	Status     any             `json:"status"`
	TrackingID string          `json:"trackingId"`
	Date       string          `json:"date"`
	Data       json.RawMessage `json:"data"`
}

// decodeRemote understands three shapes:
//
//	{"data": ["UP", "20250918INCDTKT90001", "name", "2025-10-01"]}
//	{"status": "DP", "trackingId": "...", "date": "2025-10-01"}
//	{"data": {"status": "DP", "trackingId": "...", "date": "2025-10-01"}}
//
// In the array shape a boolean top-level "status" is a success flag, not
// the application status.
func decodeRemote(body []byte) (*lookup.RawRecord, error) {
	var p remotePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("remote decode: %w", err)
	}

	var rec lookup.RawRecord
	data := strings.TrimSpace(string(p.Data))
	switch {
	case strings.HasPrefix(data, "["):
		var arr []any
		if err := json.Unmarshal(p.Data, &arr); err != nil {
			return nil, fmt.Errorf("remote decode data: %w", err)
		}
		rec.Status = field(arr, 0)
		rec.TrackingID = field(arr, 1)
		rec.Name = field(arr, 2)
		rec.Date = field(arr, 3)
	case strings.HasPrefix(data, "{"):
		var inner remotePayload
		if err := json.Unmarshal(p.Data, &inner); err != nil {
			return nil, fmt.Errorf("remote decode data: %w", err)
		}
		rec.Status = scalar(p.Status)
		if rec.Status == "" {
			rec.Status = scalar(inner.Status)
		}
		rec.TrackingID = p.TrackingID
		if rec.TrackingID == "" {
			rec.TrackingID = inner.TrackingID
		}
		rec.Date = p.Date
		if rec.Date == "" {
			rec.Date = inner.Date
		}
	default:
		rec.Status = scalar(p.Status)
		rec.TrackingID = p.TrackingID
		rec.Date = p.Date
	}

	rec.Status = strings.ToUpper(strings.TrimSpace(rec.Status))
	rec.TrackingID = strings.TrimSpace(rec.TrackingID)
	rec.Date = strings.TrimSpace(rec.Date)
	if rec.Status == "" {
		return nil, nil
	}
	return &rec, nil
}

func field(arr []any, i int) string {
	if i >= len(arr) {
		return ""
	}
	return scalar(arr[i])
}

// scalar renders JSON strings and numbers; booleans and nulls are ignored.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}
