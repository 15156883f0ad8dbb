package integration

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/gagliardetto/solana-go"
)

// ledger is an in-process JSON-RPC node holding one wallet balance and at
// most one metadata account
type ledger struct {
	mu sync.Mutex

	balance  uint64
	metadata []byte

	calls map[string]int
	sent  []types.Transaction

	server *httptest.Server
}

func newLedger(t *testing.T, balance uint64) *ledger {
	t.Helper()
	l := &ledger{
		balance: balance,
		calls:   make(map[string]int),
	}
	l.server = httptest.NewServer(http.HandlerFunc(l.serve))
	t.Cleanup(l.server.Close)
	return l
}

func (l *ledger) URL() string {
	return l.server.URL
}

func (l *ledger) Calls(method string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[method]
}

func (l *ledger) Sent() []types.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]types.Transaction(nil), l.sent...)
}

func (l *ledger) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage   `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	l.mu.Lock()
	l.calls[req.Method]++
	result, rpcErr := l.handle(req.Method, req.Params)
	l.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (l *ledger) handle(method string, params []json.RawMessage) (interface{}, map[string]interface{}) {
	switch method {
	case "getBalance":
		return withContext(l.balance), nil

	case "getAccountInfo":
		if l.metadata == nil {
			return withContext(nil), nil
		}
		return withContext(map[string]interface{}{
			"data":       []string{base64.StdEncoding.EncodeToString(l.metadata), "base64"},
			"executable": false,
			"lamports":   5616720,
			"owner":      common.MetaplexTokenMetaProgramID.ToBase58(),
			"rentEpoch":  361,
		}), nil

	case "getLatestBlockhash":
		var h solana.Hash
		copy(h[:], bytes.Repeat([]byte{7}, len(h)))
		return withContext(map[string]interface{}{
			"blockhash":            h.String(),
			"lastValidBlockHeight": 100,
		}), nil

	case "sendTransaction":
		var encoded string
		if len(params) == 0 || json.Unmarshal(params[0], &encoded) != nil {
			return nil, map[string]interface{}{"code": -32602, "message": "invalid params"}
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, map[string]interface{}{"code": -32602, "message": err.Error()}
		}
		tx, err := types.TransactionDeserialize(raw)
		if err != nil {
			return nil, map[string]interface{}{"code": -32602, "message": err.Error()}
		}
		l.sent = append(l.sent, tx)
		return testSignature().String(), nil

	case "getSignatureStatuses":
		return withContext([]interface{}{map[string]interface{}{
			"slot":               10,
			"confirmations":      nil,
			"err":                nil,
			"confirmationStatus": "finalized",
		}}), nil
	}

	return nil, map[string]interface{}{"code": -32601, "message": "Method not found"}
}

func withContext(value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   value,
	}
}

func testSignature() solana.Signature {
	var sig solana.Signature
	copy(sig[:], bytes.Repeat([]byte{9}, len(sig)))
	return sig
}

func writeString(buf *bytes.Buffer, s string, size int) {
	padded := make([]byte, size)
	copy(padded, s)
	_ = binary.Write(buf, binary.LittleEndian, uint32(size))
	buf.Write(padded)
}

// encodeMetadata builds a v1 metadata account with no creators
func encodeMetadata(mint, authority common.PublicKey, name, symbol, uri string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(4)
	buf.Write(authority.Bytes())
	buf.Write(mint.Bytes())
	writeString(&buf, name, 32)
	writeString(&buf, symbol, 10)
	writeString(&buf, uri, 200)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0))
	buf.WriteByte(0) // no creators
	buf.WriteByte(0) // primary sale happened
	buf.WriteByte(1) // mutable

	out := make([]byte, 679)
	copy(out, buf.Bytes())
	return out
}
