package thingspeak

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gr-butler/weathernode/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reading = data.Reading{
	Time:         time.Date(2026, 3, 1, 10, 32, 55, 0, time.UTC),
	TemperatureC: 21.5,
	Humidity:     55,
	PressurehPa:  1013.25,
	BatteryMV:    2650,
	HasBattery:   true,
}

func newTestClient(url string) *Client {
	return New("unused", 80, "WRITEKEY", WithBaseURL(url), WithRetryInterval(time.Millisecond), WithMaxRetries(3))
}

func TestUpdateSendsFields(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/update", r.URL.Path)
		got = r.URL.Query()
		_, _ = w.Write([]byte("42"))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).Update(context.Background(), reading)
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	assert.Equal(t, "WRITEKEY", got.Get("api_key"))
	assert.Equal(t, "2026-03-01T10:32:55Z", got.Get("created_at"))
	assert.Equal(t, "21.5", got.Get("field1"))
	assert.Equal(t, "55", got.Get("field2"))
	assert.Equal(t, "1013.25", got.Get("field3"))
	assert.Equal(t, "2.65", got.Get("field4"))
}

func TestUpdateKeepsZeroValues(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte("7\n"))
	}))
	defer srv.Close()

	r := data.Reading{TemperatureC: 0, Humidity: 80, PressurehPa: 990}
	id, err := newTestClient(srv.URL).Update(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 7, id)
	assert.Equal(t, "0", got.Get("field1"), "0C is a valid temperature")
	assert.False(t, got.Has("field4"), "no battery reading, no field4")
	assert.False(t, got.Has("created_at"))
}

func TestUpdateRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("100"))
	}))
	defer srv.Close()

	id, err := newTestClient(srv.URL).Update(context.Background(), reading)
	require.NoError(t, err)
	assert.Equal(t, 100, id)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestUpdateRejectedIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte("0"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Update(context.Background(), reading)
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUpdateBadKeyIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Update(context.Background(), reading)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestUpdateGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Update(context.Background(), reading)
	require.Error(t, err)
	// first attempt plus 3 retries
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestUpdateStopsAtDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New("unused", 80, "K", WithBaseURL(srv.URL), WithRetryInterval(time.Second), WithMaxRetries(100))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Update(ctx, reading)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "http://api.thingspeak.com", BaseURL("api.thingspeak.com", 80))
	assert.Equal(t, "https://api.thingspeak.com", BaseURL("api.thingspeak.com", 443))
	assert.Equal(t, "http://10.0.0.5:3000", BaseURL("10.0.0.5", 3000))
	assert.Equal(t, "http://[::1]", BaseURL("::1", 80))
	assert.Equal(t, "https://[fd00::5]", BaseURL("fd00::5", 443))
	assert.Equal(t, "http://[fd00::5]:3000", BaseURL("fd00::5", 3000))

	u, err := url.Parse(BaseURL("::1", 80) + "/update")
	require.NoError(t, err)
	assert.Equal(t, "::1", u.Hostname())
}
