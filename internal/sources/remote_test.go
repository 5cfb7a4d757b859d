package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/visa-track-backend/internal/lookup"
)

// seenURL records the URL of the last request the test server handled.
type seenURL struct {
	mu  sync.Mutex
	url *url.URL
}

func (s *seenURL) get() *url.URL {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

func remoteServer(t *testing.T, status int, body string) (*httptest.Server, *seenURL) {
	t.Helper()
	seen := &seenURL{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.mu.Lock()
		seen.url = r.URL
		seen.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestRemote_ArrayShape(t *testing.T) {
	srv, seen := remoteServer(t, http.StatusOK,
		`{"status":true,"data":["dp","20250918INCDTKT90001","Jane","2025-10-01"]}`)

	rec, err := NewRemote(srv.URL+"/user/checkStatus", time.Second, nil).
		Find(context.Background(), "20250918INCDTKT90001", "1990-01-01")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "DP", rec.Status)
	assert.Equal(t, "20250918INCDTKT90001", rec.TrackingID)
	assert.Equal(t, "Jane", rec.Name)
	assert.Equal(t, "2025-10-01", rec.Date)
	assert.Equal(t, "1990-01-01", rec.DOB)

	u := seen.get()
	require.NotNil(t, u)
	assert.Equal(t, "/user/checkStatus", u.Path)
	assert.Equal(t, "20250918INCDTKT90001", u.Query().Get("trackId"))
	assert.Equal(t, "1990-01-01", u.Query().Get("dob"))
}

func TestRemote_ObjectShapes(t *testing.T) {
	cases := []struct {
		name, body, wantDate string
	}{
		{"flat", `{"status":"up","trackingId":"T9"}`, ""},
		{"nested", `{"data":{"status":"up","trackingId":"T9"}}`, ""},
		{"flat with date", `{"status":"up","trackingId":"T9","date":"2025-10-01"}`, "2025-10-01"},
		{"nested with date", `{"data":{"status":"up","trackingId":"T9","date":" 2025-10-01 "}}`, "2025-10-01"},
		{"outer date wins", `{"date":"2025-10-02","data":{"status":"up","trackingId":"T9","date":"2025-10-01"}}`, "2025-10-02"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := remoteServer(t, http.StatusOK, tc.body)
			rec, err := NewRemote(srv.URL, time.Second, nil).Find(context.Background(), "T1", "d")
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, "UP", rec.Status)
			assert.Equal(t, "T9", rec.TrackingID)
			assert.Equal(t, tc.wantDate, rec.Date)
		})
	}
}

func TestRemote_ApplicationDateReachesMessage(t *testing.T) {
	srv, _ := remoteServer(t, http.StatusOK,
		`{"status":"UP","trackingId":"20250918INCDTKT90001","date":"2025-10-01"}`)

	r := lookup.NewResolver([]lookup.Source{NewRemote(srv.URL, time.Second, nil)},
		lookup.WithOffice("IRCC Office"))
	out, err := r.Resolve(context.Background(), "20250918INCDTKT90001", "1990-01-01")
	require.NoError(t, err)
	require.True(t, out.Found)
	assert.Equal(t, "2025/10/01", out.DisplayDate)
	assert.Contains(t, out.Message, "is under process at the IRCC Office on 2025/10/01")
}

func TestRemote_TimeoutAppliesToCallerClient(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	start := time.Now()
	_, err := NewRemote(srv.URL, 100*time.Millisecond, &http.Client{}).
		Find(context.Background(), "T1", "d")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRemote_MissingTrackingIDFallsBackToQuery(t *testing.T) {
	srv, _ := remoteServer(t, http.StatusOK, `{"status":"DP"}`)
	rec, err := NewRemote(srv.URL, time.Second, nil).Find(context.Background(), "T1", "d")
	require.NoError(t, err)
	assert.Equal(t, "T1", rec.TrackingID)
}

func TestRemote_NoStatusIsNoMatch(t *testing.T) {
	for _, body := range []string{`{}`, `{"status":true,"data":[]}`, `{"data":{"trackingId":"T1"}}`} {
		srv, _ := remoteServer(t, http.StatusOK, body)
		rec, err := NewRemote(srv.URL, time.Second, nil).Find(context.Background(), "T1", "d")
		require.NoError(t, err, body)
		assert.Nil(t, rec, body)
	}
}

func TestRemote_Errors(t *testing.T) {
	srv, _ := remoteServer(t, http.StatusInternalServerError, `oops`)
	_, err := NewRemote(srv.URL, time.Second, nil).Find(context.Background(), "T1", "d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	srv, _ = remoteServer(t, http.StatusOK, `not json`)
	_, err = NewRemote(srv.URL, time.Second, nil).Find(context.Background(), "T1", "d")
	require.Error(t, err)

	_, err = NewRemote("http://127.0.0.1:1", 200*time.Millisecond, nil).Find(context.Background(), "T1", "d")
	require.Error(t, err)
}
