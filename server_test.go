package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	metrics := NewMetrics()
	runner := NewRunner(log.New(io.Discard), metrics)
	ts := httptest.NewServer(NewServer(runner, metrics, DefaultConfig()))
	t.Cleanup(ts.Close)
	return ts
}

func postShuffle(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	res, err := http.Post(ts.URL+"/shuffle", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decodeResult(t *testing.T, res *http.Response) RunResult {
	t.Helper()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var out RunResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func TestServerShuffle(t *testing.T) {
	ts := newTestServer(t)

	a := decodeResult(t, postShuffle(t, ts, `{"values":[5,4,3,2,1,0],"seed":42,"split":3}`))
	assert.Equal(t, int64(42), a.Seed)
	assert.Equal(t, []int32{5, 4, 3, 2, 1, 0}, a.Before)
	isPermutation(t, a.Before, a.After)

	b := decodeResult(t, postShuffle(t, ts, `{"values":[5,4,3,2,1,0],"seed":42,"split":3}`))
	assert.Equal(t, a.After, b.After)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestServerShortInput(t *testing.T) {
	ts := newTestServer(t)
	for _, body := range []string{
		`{"values":[2,1],"seed":1}`,
		`{"values":[7],"seed":1}`,
	} {
		t.Run(body, func(t *testing.T) {
			out := decodeResult(t, postShuffle(t, ts, body))
			isPermutation(t, out.Before, out.After)
		})
	}
}

func TestServerIgnoresConfiguredSplit(t *testing.T) {
	metrics := NewMetrics()
	split := 3
	conf := DefaultConfig()
	conf.Split = &split
	srv := NewServer(NewRunner(log.New(io.Discard), metrics), metrics, conf)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/shuffle", strings.NewReader(`{"values":[2,1],"seed":1}`))
	srv.ServeHTTP(rec, req)
	out := decodeResult(t, rec.Result())
	isPermutation(t, []int32{2, 1}, out.After)
}

func TestServerBodyTooLarge(t *testing.T) {
	metrics := NewMetrics()
	srv := NewServer(NewRunner(log.New(io.Discard), metrics), metrics, DefaultConfig())
	body := `{"values":[` + strings.Repeat("1,", maxRequestBytes) + `1]}`

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/shuffle", strings.NewReader(body)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServerResultLookup(t *testing.T) {
	ts := newTestServer(t)
	a := decodeResult(t, postShuffle(t, ts, `{"values":[1,2,3,4],"seed":7,"partitions":2}`))

	res, err := http.Get(ts.URL + "/shuffle/" + a.ID.String())
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, a, decodeResult(t, res))

	res2, err := http.Get(ts.URL + "/shuffle/0b2c6a4e-8a4f-4a3e-9d8b-1f6a3c5d7e90")
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusNotFound, res2.StatusCode)

	res3, err := http.Get(ts.URL + "/shuffle/not-a-uuid")
	require.NoError(t, err)
	defer res3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res3.StatusCode)
}

func TestServerRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"values":`},
		{"empty values", `{"values":[],"seed":1}`},
		{"split out of range", `{"values":[1,2],"seed":1,"split":5}`},
		{"split and partitions", `{"values":[1,2],"seed":1,"split":1,"partitions":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := postShuffle(t, ts, tt.body)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		})
	}
}

func TestServerMetrics(t *testing.T) {
	ts := newTestServer(t)
	decodeResult(t, postShuffle(t, ts, `{"values":[3,1,2],"seed":1}`))
	postShuffle(t, ts, `{"values":[]}`)

	res, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(res.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `parallel_shuffle_runs_total{outcome="ok"} 1`)
	assert.Contains(t, buf.String(), `parallel_shuffle_runs_total{outcome="invalid_input"} 1`)
	assert.Contains(t, buf.String(), "parallel_shuffle_run_duration_seconds_count 1")
}

func TestServerSetConfig(t *testing.T) {
	metrics := NewMetrics()
	srv := NewServer(NewRunner(log.New(io.Discard), metrics), metrics, DefaultConfig())
	seed := int64(42)
	conf := DefaultConfig()
	conf.Seed = &seed
	srv.SetConfig(conf)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/shuffle", strings.NewReader(`{"values":[5,4,3,2,1,0]}`))
	srv.ServeHTTP(rec, req)
	out := decodeResult(t, rec.Result())
	assert.Equal(t, int64(42), out.Seed)
}
