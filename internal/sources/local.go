package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/visa-track-backend/internal/lookup"
)

// LocalHeader is the first row of the local application table.
var LocalHeader = []string{"Name", "Passport", "Tracking ID", "DOB", "Date", "Status", "Created", "Actions"}

// column positions in LocalHeader
const (
	colName = iota
	colPassport
	colTrackingID
	colDOB
	colDate
	colStatus
	colCreated
)

// maxTxRetries bounds optimistic-lock retries when the key changes under us.
const maxTxRetries = 5

// LocalRow is one application in the local table.
type LocalRow struct {
	Name       string `json:"name"`
	Passport   string `json:"passport"`
	TrackingID string `json:"trackingId"`
	DOB        string `json:"dob"`
	Date       string `json:"date"`
	Status     string `json:"status"`
	Created    string `json:"created"`
}

// localObject is the object form of a row. Older tables name the date
// column applicationDate.
type localObject struct {
	LocalRow
	ApplicationDate string `json:"applicationDate"`
}

func (r LocalRow) cells() []string {
	return []string{r.Name, r.Passport, r.TrackingID, r.DOB, r.Date, r.Status, r.Created, ""}
}

// Local is the Redis-backed application table: one key holding a JSON
// array of rows, header first. Reads also accept a plain array of objects.
type Local struct {
	rdb redis.UniversalClient
	key string
	mu  sync.Mutex
}

// NewLocal returns a table stored under key (default "vfs_applications").
func NewLocal(rdb redis.UniversalClient, key string) *Local {
	if key == "" {
		key = "vfs_applications"
	}
	return &Local{rdb: rdb, key: key}
}

func (l *Local) Name() string { return "local" }

// Find scans the table for a row matching both trackingID and dob.
func (l *Local) Find(ctx context.Context, trackingID, dob string) (*lookup.RawRecord, error) {
	rows, err := l.Rows(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.TrackingID == trackingID && r.DOB == dob {
			return &lookup.RawRecord{
				TrackingID: r.TrackingID,
				DOB:        r.DOB,
				Name:       r.Name,
				Status:     r.Status,
				Date:       r.Date,
			}, nil
		}
	}
	return nil, nil
}

// Rows returns every data row. A missing key is an empty table.
func (l *Local) Rows(ctx context.Context) ([]LocalRow, error) {
	b, err := l.rdb.Get(ctx, l.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local store read: %w", err)
	}
	return DecodeLocal(b)
}

// Append adds rows at the end of the table.
func (l *Local) Append(ctx context.Context, rows ...LocalRow) error {
	if len(rows) == 0 {
		return nil
	}
	return l.update(ctx, func(cur []LocalRow) []LocalRow { return append(cur, rows...) })
}

// ReplaceAll rewrites the table with rows, keeping the header.
func (l *Local) ReplaceAll(ctx context.Context, rows []LocalRow) error {
	return l.update(ctx, func([]LocalRow) []LocalRow { return rows })
}

// update runs a read-modify-write under WATCH so concurrent writers from
// other replicas are not lost; the mutex serializes writers in-process.
func (l *Local) update(ctx context.Context, fn func([]LocalRow) []LocalRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, l.key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		var cur []LocalRow
		if len(b) > 0 {
			if cur, err = DecodeLocal(b); err != nil {
				return err
			}
		}
		out, err := EncodeLocal(fn(cur))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, l.key, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := l.rdb.Watch(ctx, txf, l.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("local store write: %w", err)
		}
		return nil
	}
	return fmt.Errorf("local store write: %w", redis.TxFailedErr)
}

// EncodeLocal renders rows in the table layout: header, then one array of
// cells per row.
func EncodeLocal(rows []LocalRow) ([]byte, error) {
	table := make([][]string, 0, len(rows)+1)
	table = append(table, LocalHeader)
	for _, r := range rows {
		table = append(table, r.cells())
	}
	return json.Marshal(table)
}

// DecodeLocal parses either layout the table has been stored in: arrays of
// cells (with or without the header row) or objects with trackingId, dob,
// status and friends. Elements of other types are skipped.
func DecodeLocal(b []byte) ([]LocalRow, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("local store decode: %w", err)
	}
	rows := make([]LocalRow, 0, len(items))
	for _, it := range items {
		s := strings.TrimSpace(string(it))
		switch {
		case strings.HasPrefix(s, "["):
			var cells []any
			if err := json.Unmarshal(it, &cells); err != nil {
				return nil, fmt.Errorf("local store decode row: %w", err)
			}
			if isHeader(cells) {
				continue
			}
			rows = append(rows, LocalRow{
				Name:       cell(cells, colName),
				Passport:   cell(cells, colPassport),
				TrackingID: cell(cells, colTrackingID),
				DOB:        cell(cells, colDOB),
				Date:       cell(cells, colDate),
				Status:     cell(cells, colStatus),
				Created:    cell(cells, colCreated),
			})
		case strings.HasPrefix(s, "{"):
			var o localObject
			if err := json.Unmarshal(it, &o); err != nil {
				return nil, fmt.Errorf("local store decode row: %w", err)
			}
			if o.Date == "" {
				o.Date = o.ApplicationDate
			}
			rows = append(rows, o.LocalRow)
		}
	}
	return rows, nil
}

func isHeader(cells []any) bool {
	return strings.EqualFold(cell(cells, colTrackingID), LocalHeader[colTrackingID]) &&
		strings.EqualFold(cell(cells, colName), LocalHeader[colName])
}

func cell(cells []any, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(scalar(cells[i]))
}

var _ lookup.Source = (*Local)(nil)
