package main

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"

	"huntforge.ai/internal/hunt/index"
	"huntforge.ai/internal/hunt/service"
	"huntforge.ai/internal/metrics"
	"huntforge.ai/internal/protocol"
	"huntforge.ai/internal/transport/httpmw"
	"huntforge.ai/internal/transport/mcp"
	"huntforge.ai/internal/transport/ws"
)

const httpSource = "http"

type muxOptions struct {
	EnablePprof bool
	// Limiter applies to the query endpoints only; nil disables it.
	Limiter httpmw.Limiter
	// MCP serves agent tool calls at /v1/mcp when set.
	MCP *mcp.Server
}

func buildMux(svc *service.Service, wsSrv *ws.Server, opts muxOptions, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	mux.Handle("/v1/hints", httpmw.RateLimit(opts.Limiter, getOnly(func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		x, errX := strconv.ParseInt(q.Get("x"), 10, 32)
		y, errY := strconv.ParseInt(q.Get("y"), 10, 32)
		dir, errD := strconv.Atoi(q.Get("direction"))
		if errX != nil || errY != nil || errD != nil {
			writeError(rw, protocol.ErrBadRequest, "x, y and direction must be integers")
			return
		}
		writeJSON(rw, svc.Hints(httpSource, int32(x), int32(y), index.Direction(dir)))
	})))

	mux.Handle("/v1/names", httpmw.RateLimit(opts.Limiter, getOnly(func(rw http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ids, err := parseIDs(q.Get("ids"))
		if err != nil {
			writeError(rw, protocol.ErrBadRequest, "ids must be a comma separated list of integers")
			return
		}
		writeJSON(rw, svc.Names(httpSource, ids, q.Get("lang")))
	})))

	mux.HandleFunc("/v1/catalogs", getOnly(func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, svc.Info())
	}))

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	if opts.MCP != nil {
		mux.Handle("/v1/mcp", httpmw.RateLimit(opts.Limiter, opts.MCP.Handler()))
	}

	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else if logger != nil {
		logger.Printf("pprof endpoints disabled (HF_ENABLE_PPROF_HTTP=false)")
	}
	return mux
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(rw, r)
	}
}

// parseIDs accepts "1,2,3". An empty list is valid.
func parseIDs(s string) ([]index.HintID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]index.HintID, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, index.HintID(n))
	}
	return out, nil
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, code, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(protocol.HTTPStatus(code))
	_ = json.NewEncoder(rw).Encode(map[string]string{"code": code, "message": msg})
}
