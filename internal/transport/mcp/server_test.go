package mcp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"huntforge.ai/internal/hunt/index"
	"huntforge.ai/internal/hunt/service"
)

func newService(t *testing.T) *service.Service {
	t.Helper()
	var hints, names map[string]json.RawMessage
	_ = json.Unmarshal([]byte(`{"2,3": [[{"d":1,"x":2,"y":2,"ids":[10]},{"d":2,"x":2,"y":1,"ids":[10,11]}], null, null, null]}`), &hints)
	_ = json.Unmarshal([]byte(`{"10":{"en":"Fountain","fr":"Fontaine"},"11":{"en":"Statue"}}`), &names)
	ix, err := index.Build(hints, names, index.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return service.New(ix, service.Options{Info: service.Info{HintsDigest: "hd"}})
}

func newTestServer(t *testing.T, secret string) (*Server, *httptest.Server) {
	t.Helper()
	s, err := NewServer(Config{Service: newService(t), HMACSecret: secret})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, url string, payload any, headers map[string]string) (int, reply) {
	t.Helper()
	b, _ := json.Marshal(payload)
	return postRaw(t, url, b, headers)
}

func postRaw(t *testing.T, url string, body []byte, headers map[string]string) (int, reply) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	var out reply
	if res.StatusCode == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return res.StatusCode, out
}

func resultAs(t *testing.T, resp reply, v any) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("rpc error: %+v", resp.Error)
	}
	b, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("result: %v", err)
	}
}

func TestMCP_ListAndCallTools(t *testing.T) {
	_, ts := newTestServer(t, "")

	_, resp := post(t, ts.URL, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"}, nil)
	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	resultAs(t, resp, &list)
	if len(list.Tools) != 3 || list.Tools[0].Name != toolQueryHints {
		t.Fatalf("tools=%+v", list.Tools)
	}

	_, resp = post(t, ts.URL, map[string]any{"jsonrpc": "2.0", "id": 2, "method": "tools/call",
		"params": map[string]any{"name": toolQueryHints, "arguments": map[string]any{"x": 2, "y": 3, "direction": 0}}}, nil)
	var hints map[string]struct {
		Dist  uint32            `json:"dist"`
		Names map[string]string `json:"names"`
	}
	resultAs(t, resp, &hints)
	if len(hints) != 2 || hints["11"].Dist != 2 || hints["10"].Names["fr"] != "Fontaine" {
		t.Fatalf("hints=%+v", hints)
	}

	_, resp = post(t, ts.URL, map[string]any{"jsonrpc": "2.0", "id": 3, "method": "tools/call",
		"params": map[string]any{"name": toolLookupNames, "arguments": map[string]any{"ids": []int{10, 99}, "lang": "fr"}}}, nil)
	var names map[string]string
	resultAs(t, resp, &names)
	if len(names) != 1 || names["10"] != "Fontaine" {
		t.Fatalf("names=%+v", names)
	}

	_, resp = post(t, ts.URL, map[string]any{"jsonrpc": "2.0", "id": 4, "method": "tools/call",
		"params": map[string]any{"name": toolQueryHints, "arguments": map[string]any{"x": 2}}}, nil)
	if resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("missing args resp=%+v", resp)
	}

	_, resp = post(t, ts.URL, map[string]any{"jsonrpc": "2.0", "id": 5, "method": "tools/call",
		"params": map[string]any{"name": "huntforge.nope"}}, nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("unknown tool resp=%+v", resp)
	}
}

func TestMCP_HMACAndReplay(t *testing.T) {
	const secret = "topsecret"
	s, ts := newTestServer(t, secret)
	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize"}`)
	tsStr := strconv.FormatInt(fixed.UnixMilli(), 10)
	headers := map[string]string{
		headerClientID:  "agent_1",
		headerTS:        tsStr,
		headerNonce:     "n1",
		headerSignature: signHMAC([]byte(secret), canonicalString(tsStr, http.MethodPost, "/", "agent_1", "n1", body)),
	}

	if code, _ := postRaw(t, ts.URL, body, nil); code != http.StatusUnauthorized {
		t.Fatalf("unsigned status=%d", code)
	}
	code, resp := postRaw(t, ts.URL+"/", body, headers)
	if code != http.StatusOK || resp.Error != nil {
		t.Fatalf("signed status=%d resp=%+v", code, resp)
	}
	if code, _ := postRaw(t, ts.URL+"/", body, headers); code != http.StatusUnauthorized {
		t.Fatalf("replay status=%d", code)
	}

	s.now = func() time.Time { return fixed.Add(maxClockSkew + time.Second) }
	headers[headerNonce] = "n2"
	headers[headerSignature] = signHMAC([]byte(secret), canonicalString(tsStr, http.MethodPost, "/", "agent_1", "n2", body))
	if code, _ := postRaw(t, ts.URL+"/", body, headers); code != http.StatusUnauthorized {
		t.Fatalf("stale status=%d", code)
	}
}

func TestMCP_ReplayedNonceRejectedEvenWithFreshTimestamp(t *testing.T) {
	const secret = "topsecret"
	s, ts := newTestServer(t, secret)
	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	signed := func(at time.Time) map[string]string {
		tsStr := strconv.FormatInt(at.UnixMilli(), 10)
		return map[string]string{
			headerClientID:  "agent_1",
			headerTS:        tsStr,
			headerNonce:     "same",
			headerSignature: signHMAC([]byte(secret), canonicalString(tsStr, http.MethodPost, "/", "agent_1", "same", body)),
		}
	}
	if code, _ := postRaw(t, ts.URL+"/", body, signed(fixed)); code != http.StatusOK {
		t.Fatalf("first status=%d", code)
	}
	if code, _ := postRaw(t, ts.URL+"/", body, signed(fixed.Add(time.Second))); code != http.StatusUnauthorized {
		t.Fatalf("re-signed replay status=%d", code)
	}
}

func TestMCP_RejectsNonPost(t *testing.T) {
	_, ts := newTestServer(t, "")
	res, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", res.StatusCode)
	}
}
