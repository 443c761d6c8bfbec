package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
)

type errorCode int

const (
	codeMethodNotFound errorCode = -32601
	codeInvalidParams  errorCode = -32602
	codeToolFailed     errorCode = -32000
)

// rpcError is the JSON-RPC error object. Handlers return it as a plain error;
// any other error is reported as codeToolFailed.
type rpcError struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message) }

func (c errorCode) err(msg string, data any) *rpcError {
	return &rpcError{Code: c, Message: msg, Data: data}
}

type call struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type reply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func decodeCall(body []byte) (call, error) {
	var c call
	if err := json.Unmarshal(body, &c); err != nil {
		return call{}, err
	}
	switch {
	case c.JSONRPC != "" && c.JSONRPC != "2.0":
		return call{}, fmt.Errorf("unsupported jsonrpc version %q", c.JSONRPC)
	case c.Method == "":
		return call{}, errors.New("missing method")
	}
	return c, nil
}

func (c call) reply(result any, err error) reply {
	r := reply{JSONRPC: "2.0", ID: c.ID}
	if err == nil {
		r.Result = result
		return r
	}
	var re *rpcError
	if !errors.As(err, &re) {
		re = codeToolFailed.err(err.Error(), nil)
	}
	r.Error = re
	return r
}

// params decodes raw into v. Empty input leaves v untouched.
func params(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return codeInvalidParams.err("bad arguments", err.Error())
	}
	return nil
}
