// Package mcp exposes hint lookups as JSON-RPC tools for agent clients.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"huntforge.ai/internal/hunt/index"
	"huntforge.ai/internal/hunt/service"
)

const (
	protocolVersion = "2024-11-05"
	source          = "mcp"
	maxBody         = 1 << 20
)

// Service is the query surface the tools call into.
type Service interface {
	Hints(source string, x, y int32, dir index.Direction) map[index.HintID]index.ResolvedHint
	Names(source string, ids []index.HintID, lang string) map[index.HintID]string
	Info() service.Info
}

type Config struct {
	Service Service
	// HMACSecret enables signed requests. Without it only loopback clients are served.
	HMACSecret string
	Logger     *log.Logger
}

type Server struct {
	svc    Service
	secret []byte
	nonces *nonceCache
	log    *log.Logger
	now    func() time.Time
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("nil service")
	}
	s := &Server{svc: cfg.Service, log: cfg.Logger, now: time.Now}
	if secret := strings.TrimSpace(cfg.HMACSecret); secret != "" {
		s.secret = []byte(secret)
		s.nonces = newNonceCache(2*maxClockSkew, 0)
	}
	return s, nil
}

func (s *Server) Handler() http.HandlerFunc { return s.handle }

func (s *Server) handle(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	_ = r.Body.Close()
	if err != nil {
		http.Error(rw, "bad body", http.StatusBadRequest)
		return
	}
	if status, msg := s.authorize(r, body); status != 0 {
		http.Error(rw, msg, status)
		return
	}

	c, err := decodeCall(body)
	if err != nil {
		http.Error(rw, "bad jsonrpc request", http.StatusBadRequest)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(c.reply(s.dispatch(c)))
}

// authorize returns a non-zero HTTP status when the request must be refused.
func (s *Server) authorize(r *http.Request, body []byte) (int, string) {
	if s.secret == nil {
		if !isLoopback(r) {
			return http.StatusForbidden, "forbidden: non-loopback client"
		}
		return 0, ""
	}
	now := s.now()
	sr, err := verifyHMAC(r, body, s.secret, now)
	if err != nil {
		s.printf("mcp auth rejected remote=%s reason=%v", r.RemoteAddr, err)
		return http.StatusUnauthorized, err.Error()
	}
	switch err := s.nonces.claim(sr.ClientID, sr.Nonce, now); {
	case errors.Is(err, errNonceReused):
		s.printf("mcp replay rejected client=%s", sr.ClientID)
		return http.StatusUnauthorized, "replayed request"
	case err != nil:
		s.printf("mcp nonce refused client=%s: %v", sr.ClientID, err)
		return http.StatusServiceUnavailable, err.Error()
	}
	return 0, ""
}

func (s *Server) dispatch(c call) (any, error) {
	switch c.Method {
	case "initialize":
		return map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
			"serverInfo":      map[string]any{"name": "huntforge", "hints_digest": s.svc.Info().HintsDigest},
		}, nil
	case "tools/list", "list_tools":
		return map[string]any{"tools": tools}, nil
	case "tools/call", "call_tool":
		if len(c.Params) == 0 {
			return nil, codeInvalidParams.err("missing params", nil)
		}
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(c.Params, &p); err != nil {
			return nil, codeInvalidParams.err("bad params", err.Error())
		}
		if p.Name == "" {
			return nil, codeInvalidParams.err("missing tool name", nil)
		}
		t, ok := findTool(p.Name)
		if !ok {
			return nil, codeMethodNotFound.err("tool not found", map[string]any{"name": p.Name})
		}
		return t.run(s.svc, p.Arguments)
	default:
		return nil, codeMethodNotFound.err("method not found", nil)
	}
}

func (s *Server) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}
