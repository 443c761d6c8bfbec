package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"huntforge.ai/internal/hunt/index"
	"huntforge.ai/internal/hunt/service"
	"huntforge.ai/internal/protocol"
	"huntforge.ai/internal/transport/httpmw"
	"huntforge.ai/internal/transport/ws"
)

const (
	testHints = `{
	  "2,3": [[{"d":1,"x":2,"y":2,"ids":[10]},{"d":2,"x":2,"y":1,"ids":[10,11]}], null, null, null]
	}`
	testNames = `{"10":{"en":"Fountain","fr":"Fontaine"},"11":{"en":"Statue","fr":"Statue"}}`
)

func newTestMux(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestMuxWith(t, muxOptions{})
}

func newTestMuxWith(t *testing.T, opts muxOptions) *httptest.Server {
	t.Helper()
	var hints, names map[string]json.RawMessage
	if err := json.Unmarshal([]byte(testHints), &hints); err != nil {
		t.Fatalf("hints: %v", err)
	}
	if err := json.Unmarshal([]byte(testNames), &names); err != nil {
		t.Fatalf("names: %v", err)
	}
	ix, err := index.Build(hints, names, service.IndexOptions(index.LangEN, nil))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	svc := service.New(ix, service.Options{Info: service.Info{HintsDigest: "hd", NamesDigest: "nd", Source: sourceCatalogs}})
	wsSrv, err := ws.NewServer(svc, nil, ws.Options{})
	if err != nil {
		t.Fatalf("ws.NewServer: %v", err)
	}
	ts := httptest.NewServer(buildMux(svc, wsSrv, opts, nil))
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return resp.StatusCode, b
}

func TestMux_Healthz(t *testing.T) {
	ts := newTestMux(t)
	code, body := get(t, ts, "/healthz")
	if code != http.StatusOK || string(body) != "ok" {
		t.Fatalf("healthz: %d %q", code, body)
	}
}

func TestMux_Hints(t *testing.T) {
	ts := newTestMux(t)

	code, body := get(t, ts, "/v1/hints?x=2&y=3&direction=0")
	if code != http.StatusOK {
		t.Fatalf("status=%d body=%s", code, body)
	}
	var got map[string]struct {
		Dist  uint32            `json:"dist"`
		X     int32             `json:"x"`
		Y     int32             `json:"y"`
		Names map[string]string `json:"names"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got["10"].Dist != 1 || got["11"].Dist != 2 || got["11"].Y != 1 {
		t.Fatalf("hints=%+v", got)
	}
	if got["10"].Names["fr"] != "Fontaine" {
		t.Fatalf("names=%+v", got["10"].Names)
	}

	for _, q := range []string{"x=2&y=3&direction=9", "x=2&y=3&direction=-1", "x=50&y=50&direction=0", "x=2&y=3&direction=1"} {
		code, body := get(t, ts, "/v1/hints?"+q)
		if code != http.StatusOK || strings.TrimSpace(string(body)) != "{}" {
			t.Fatalf("%s: %d %s want 200 {}", q, code, body)
		}
	}

	for _, q := range []string{"x=a&y=3&direction=0", "x=2&direction=0", "x=2&y=3&direction=north", "x=2.5&y=3&direction=0"} {
		code, body := get(t, ts, "/v1/hints?"+q)
		if code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", q, code)
		}
		var e struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(body, &e); err != nil || e.Code != protocol.ErrBadRequest {
			t.Fatalf("%s: error body %s", q, body)
		}
	}
}

func TestMux_Names(t *testing.T) {
	ts := newTestMux(t)

	cases := []struct {
		query string
		want  map[string]string
	}{
		{"ids=10,11&lang=fr", map[string]string{"10": "Fontaine", "11": "Statue"}},
		{"ids=10,99", map[string]string{"10": "Fountain"}},
		{"ids=10&lang=zz", map[string]string{"10": "Fountain"}},
		{"ids=", map[string]string{}},
	}
	for _, tc := range cases {
		code, body := get(t, ts, "/v1/names?"+tc.query)
		if code != http.StatusOK {
			t.Fatalf("%s: status=%d", tc.query, code)
		}
		var got map[string]string
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("%s: decode: %v", tc.query, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%s: got %v want %v", tc.query, got, tc.want)
		}
		for k, v := range tc.want {
			if got[k] != v {
				t.Fatalf("%s: got %v want %v", tc.query, got, tc.want)
			}
		}
	}

	if code, _ := get(t, ts, "/v1/names?ids=10,abc"); code != http.StatusBadRequest {
		t.Fatalf("malformed ids: status=%d want 400", code)
	}
}

func TestMux_CatalogsAndMetrics(t *testing.T) {
	ts := newTestMux(t)

	code, body := get(t, ts, "/v1/catalogs")
	if code != http.StatusOK {
		t.Fatalf("catalogs status=%d", code)
	}
	var info service.Info
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.HintsDigest != "hd" || info.DefaultLanguage != "en" || info.Stats.Coords != 1 || len(info.Languages) != len(index.Languages) {
		t.Fatalf("info=%+v", info)
	}

	_, _ = get(t, ts, "/v1/hints?x=2&y=3&direction=0")
	code, body = get(t, ts, "/metrics")
	if code != http.StatusOK || !strings.Contains(string(body), "huntforge_queries_total") {
		t.Fatalf("metrics: %d", code)
	}

	resp, err := http.Post(ts.URL+"/v1/hints?x=2&y=3&direction=0", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d want 405", resp.StatusCode)
	}
}

func TestMux_RateLimitsQueryEndpoints(t *testing.T) {
	ts := newTestMuxWith(t, muxOptions{Limiter: httpmw.NewTokenBucket(1)})
	codes := map[int]int{}
	for i := 0; i < 3; i++ {
		code, _ := get(t, ts, "/v1/hints?x=2&y=3&direction=0")
		codes[code]++
	}
	if codes[http.StatusTooManyRequests] == 0 {
		t.Fatalf("codes=%v want at least one 429", codes)
	}
	if code, _ := get(t, ts, "/healthz"); code != http.StatusOK {
		t.Fatalf("healthz limited: %d", code)
	}
}
