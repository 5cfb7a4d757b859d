package sources

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) (*Local, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewLocal(rdb, ""), mr
}

func TestLocal_AppendWritesTableAndFinds(t *testing.T) {
	l, mr := newLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Append(ctx, LocalRow{
		Name: "Jane", Passport: "P1", TrackingID: "T1", DOB: "1990-05-01",
		Date: "2025-01-01", Status: "DP", Created: "2025-01-01T00:00:00Z",
	}))
	require.NoError(t, l.Append(ctx, LocalRow{TrackingID: "T2", DOB: "1980-01-01", Status: "Under Process"}))

	raw, err := mr.Get("vfs_applications")
	require.NoError(t, err)
	var table [][]string
	require.NoError(t, json.Unmarshal([]byte(raw), &table))
	require.Len(t, table, 3)
	assert.Equal(t, LocalHeader, table[0])
	assert.Equal(t, []string{"Jane", "P1", "T1", "1990-05-01", "2025-01-01", "DP", "2025-01-01T00:00:00Z", ""}, table[1])

	rec, err := l.Find(ctx, "T1", "1990-05-01")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "DP", rec.Status)
	assert.Equal(t, "2025-01-01", rec.Date)

	rec, err = l.Find(ctx, "T1", "1980-01-01")
	require.NoError(t, err)
	assert.Nil(t, rec, "both id and dob must match")
}

func TestLocal_ReadsObjectList(t *testing.T) {
	l, mr := newLocal(t)
	require.NoError(t, mr.Set("vfs_applications",
		`[{"trackingId":"T1","dob":"1990-05-01","status":"UP"},{"trackingId":"T2","dob":"x","status":"DP"}]`))

	rec, err := l.Find(context.Background(), "T2", "x")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "DP", rec.Status)
}

func TestLocal_MissingKeyIsEmpty(t *testing.T) {
	l, _ := newLocal(t)
	rec, err := l.Find(context.Background(), "T1", "d")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLocal_CorruptValueErrors(t *testing.T) {
	l, mr := newLocal(t)
	require.NoError(t, mr.Set("vfs_applications", "{not json"))
	_, err := l.Find(context.Background(), "T1", "d")
	require.Error(t, err)
}

func TestLocal_ReplaceAllKeepsHeader(t *testing.T) {
	l, mr := newLocal(t)
	ctx := context.Background()
	require.NoError(t, l.Append(ctx, LocalRow{TrackingID: "OLD", DOB: "d"}))

	require.NoError(t, l.ReplaceAll(ctx, []LocalRow{{TrackingID: "NEW", DOB: "d", Status: "UP"}}))
	rows, err := l.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "NEW", rows[0].TrackingID)

	require.NoError(t, l.ReplaceAll(ctx, nil))
	raw, _ := mr.Get("vfs_applications")
	assert.JSONEq(t, `[["Name","Passport","Tracking ID","DOB","Date","Status","Created","Actions"]]`, raw)
}

func TestLocal_ConcurrentAppends(t *testing.T) {
	l, _ := newLocal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Append(ctx, LocalRow{TrackingID: string(rune('A' + i)), DOB: "d"}))
		}(i)
	}
	wg.Wait()

	rows, err := l.Rows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 20)
}

func TestDecodeLocal_MixedAndNumeric(t *testing.T) {
	rows, err := DecodeLocal([]byte(`[
		["Name","Passport","Tracking ID","DOB","Date","Status","Created","Actions"],
		["A", 12345, "T1", "d", "2025-01-01", "UP"],
		{"trackingId":"T2","dob":"d2","status":"DP"},
		null
	]`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "12345", rows[0].Passport)
	assert.Equal(t, "", rows[0].Created)
	assert.Equal(t, "T2", rows[1].TrackingID)
}

func TestDecodeLocal_ApplicationDateAlias(t *testing.T) {
	rows, err := DecodeLocal([]byte(`[
		{"trackingId":"T1","dob":"d","status":"UP","applicationDate":"2025-10-01"},
		{"trackingId":"T2","dob":"d","status":"UP","date":"2025-10-02","applicationDate":"2025-10-03"}
	]`))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-10-01", rows[0].Date)
	assert.Equal(t, "2025-10-02", rows[1].Date, "date wins over the alias")
}
