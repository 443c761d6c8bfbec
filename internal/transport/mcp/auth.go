package mcp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	headerClientID  = "x-client-id"
	headerTS        = "x-ts"
	headerNonce     = "x-nonce"
	headerSignature = "x-signature"

	maxClockSkew = 5 * time.Minute
)

// canonicalString is the signed payload: ts, method, path, client id, nonce
// and raw body joined by newlines.
func canonicalString(ts, method, path, clientID, nonce string, body []byte) string {
	return strings.Join([]string{
		ts,
		strings.ToUpper(method),
		path,
		strings.TrimSpace(clientID),
		strings.TrimSpace(nonce),
		string(body),
	}, "\n")
}

func signHMAC(secret []byte, canonical string) string {
	h := hmac.New(sha256.New, secret)
	_, _ = h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

type signedRequest struct {
	ClientID string
	Nonce    string
}

type authError string

func (e authError) Error() string { return string(e) }

func verifyHMAC(r *http.Request, body []byte, secret []byte, now time.Time) (signedRequest, error) {
	h := func(name string) string { return strings.TrimSpace(r.Header.Get(name)) }
	sr := signedRequest{ClientID: h(headerClientID), Nonce: h(headerNonce)}
	tsStr := h(headerTS)
	sig := strings.ToLower(h(headerSignature))
	for _, f := range [...]struct{ name, v string }{
		{headerClientID, sr.ClientID}, {headerTS, tsStr}, {headerNonce, sr.Nonce}, {headerSignature, sig},
	} {
		if f.v == "" {
			return signedRequest{}, authError("missing " + f.name)
		}
	}

	tsMS, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return signedRequest{}, authError("bad " + headerTS)
	}
	if skew := now.Sub(time.UnixMilli(tsMS)); skew > maxClockSkew || skew < -maxClockSkew {
		return signedRequest{}, authError(headerTS + " outside window")
	}

	want := signHMAC(secret, canonicalString(tsStr, r.Method, r.URL.Path, sr.ClientID, sr.Nonce, body))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return signedRequest{}, authError("bad signature")
	}
	return sr, nil
}

func isLoopback(r *http.Request) bool {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
