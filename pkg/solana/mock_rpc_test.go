package solana

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// rpcHandler answers one JSON-RPC method. A non-nil rpcErr is sent as the
// response error object instead of result.
type rpcHandler func(params json.RawMessage) (result interface{}, rpcErr map[string]interface{})

// mockRPC is a JSON-RPC server with canned answers per method
type mockRPC struct {
	mu       sync.Mutex
	handlers map[string]rpcHandler
	calls    map[string]int
	server   *httptest.Server
}

func newMockRPC(t *testing.T, handlers map[string]rpcHandler) *mockRPC {
	t.Helper()
	m := &mockRPC{
		handlers: handlers,
		calls:    make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockRPC) URL() string {
	return m.server.URL
}

func (m *mockRPC) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockRPC) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.calls[req.Method]++
	handler := m.handlers[req.Method]
	m.mu.Unlock()

	resp := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      req.ID,
	}
	if handler == nil {
		resp["error"] = map[string]interface{}{"code": -32601, "message": "Method not found"}
	} else if result, rpcErr := handler(req.Params); rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func withContext(value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   value,
	}
}

func result(v interface{}) rpcHandler {
	return func(json.RawMessage) (interface{}, map[string]interface{}) {
		return v, nil
	}
}
