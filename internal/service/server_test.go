package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// frameRequest encodes req as one Content-Length framed message.
func frameRequest(t *testing.T, id, method string, params any) []byte {
	t.Helper()
	var raw []byte
	var err error
	if params != nil {
		raw, err = json.Marshal(params)
		require.NoError(t, err)
	}
	req := Request{JSONRPC: JSONRPCVersion, Method: method, Params: raw}
	if id != "" {
		req.ID = json.RawMessage(id)
	}
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return []byte(fmt.Sprintf("Content-Length: %d\r\n\r\n%s", len(body), body))
}

// readResponses decodes every framed message in buf into a Response slice.
func readResponses(t *testing.T, buf []byte) []Response {
	t.Helper()
	var out []Response
	for len(buf) > 0 {
		idx := bytes.Index(buf, []byte("\r\n\r\n"))
		require.GreaterOrEqual(t, idx, 0, "malformed frame in %q", buf)
		header := string(buf[:idx])
		var n int
		_, err := fmt.Sscanf(header, "Content-Length: %d", &n)
		require.NoError(t, err)
		buf = buf[idx+4:]
		body := buf[:n]
		buf = buf[n:]

		var resp Response
		require.NoError(t, json.Unmarshal(body, &resp))
		out = append(out, resp)
	}
	return out
}

func TestServerCommitThenPullDiagnostics(t *testing.T) {
	s := NewServer()
	var in bytes.Buffer
	in.Write(frameRequest(t, `1`, "commit", CommitParams{
		URI:  "file:///a.wat",
		Text: `(module (func $unused (result i32) (i32.add (i32.const 0))))`,
	}))
	in.Write(frameRequest(t, `2`, "pull_diagnostics", DiagnosticsParams{URI: "file:///a.wat"}))

	var out bytes.Buffer
	err := s.Run(context.Background(), &in, &out)
	require.NoError(t, err)

	resps := readResponses(t, out.Bytes())
	require.Len(t, resps, 2)
	require.Nil(t, resps[0].Error)
	require.Nil(t, resps[1].Error)

	var res DiagnosticsResult
	b, err := json.Marshal(resps[1].Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &res))
	require.NotEmpty(t, res.Items, "stack-underflow body should produce a diagnostic")
}

func TestServerPullDiagnosticsOnUnknownDocumentErrors(t *testing.T) {
	s := NewServer()
	var in bytes.Buffer
	in.Write(frameRequest(t, `1`, "pull_diagnostics", DiagnosticsParams{URI: "file:///missing.wat"}))

	var out bytes.Buffer
	err := s.Run(context.Background(), &in, &out)
	require.NoError(t, err)

	resps := readResponses(t, out.Bytes())
	require.Len(t, resps, 1)
	require.NotNil(t, resps[0].Error)
}

func TestServerExitStopsTheLoop(t *testing.T) {
	s := NewServer()
	var in bytes.Buffer
	in.Write(frameRequest(t, "", "exit", nil))
	in.Write(frameRequest(t, `1`, "initialize", nil))

	var out bytes.Buffer
	err := s.Run(context.Background(), &in, &out)
	require.NoError(t, err)
	require.Empty(t, out.Bytes(), "exit must stop the loop before the trailing initialize is read")
}

func TestServerHoverOnFuncReturnsSignature(t *testing.T) {
	s := NewServer()
	var in bytes.Buffer
	in.Write(frameRequest(t, `1`, "commit", CommitParams{
		URI:  "file:///h.wat",
		Text: `(module (func $f (param i32) (result i32) (local.get 0)))`,
	}))
	in.Write(frameRequest(t, `2`, "hover", PositionParams{
		URI:      "file:///h.wat",
		Position: Position{Line: 0, Character: 16},
	}))

	var out bytes.Buffer
	err := s.Run(context.Background(), &in, &out)
	require.NoError(t, err)

	resps := readResponses(t, out.Bytes())
	require.Len(t, resps, 2)
	require.Nil(t, resps[1].Error)

	var hover HoverResult
	b, err := json.Marshal(resps[1].Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &hover))
	require.Equal(t, "func (i32) -> (i32)", hover.Contents)
}
