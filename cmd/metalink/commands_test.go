package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// rpcNode counts JSON-RPC calls and answers the few a link run makes
type rpcNode struct {
	mu    sync.Mutex
	calls map[string]int
	url   string
}

func newRPCNode(t *testing.T) *rpcNode {
	t.Helper()
	n := &rpcNode{calls: make(map[string]int)}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		n.mu.Lock()
		n.calls[req.Method]++
		n.mu.Unlock()

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "getHealth":
			resp["result"] = "ok"
		case "getBalance":
			resp["result"] = map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value":   0,
			}
		default:
			resp["error"] = map[string]interface{}{"code": -32601, "message": "Method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	n.url = server.URL
	return n
}

func (n *rpcNode) total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, c := range n.calls {
		total += c
	}
	return total
}

func (n *rpcNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

func setLinkEnv(t *testing.T, keypair string, nodes ...*rpcNode) {
	t.Helper()
	urls := make([]string, len(nodes))
	for i, n := range nodes {
		urls[i] = n.url
	}
	t.Setenv("METALINK_CONFIG", "")
	t.Setenv("METALINK_PROFILE", "")
	t.Setenv("METALINK_EXPECTED_WALLET", "")
	t.Setenv("METALINK_MIN_BALANCE", "")
	t.Setenv("METALINK_RABBITMQ_HOST", "")
	t.Setenv("RABBITMQ_HOST", "")
	t.Setenv("METALINK_RPC_URLS", strings.Join(urls, ","))
	t.Setenv("METALINK_WS_URL", "none")
	t.Setenv("METALINK_KEYPAIR", keypair)
}

func runApp(t *testing.T, action cli.ActionFunc) error {
	t.Helper()
	app := cli.NewApp()
	app.Name = "metalink"
	app.Flags = []cli.Flag{
		configFlag,
		profileFlag,
		keypairFlag,
		mintFlag,
		clusterFlag,
		rpcURLFlag,
		wsURLFlag,
		logLevelFlag,
		logFormatFlag,
	}
	app.Action = action
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	return app.RunContext(context.Background(), []string{"metalink"})
}

func writeKeyFile(t *testing.T, account types.Account) string {
	t.Helper()
	ints := make([]int, len(account.PrivateKey))
	for i, b := range account.PrivateKey {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestLinkMissingKeyFileMakesNoNetworkCalls(t *testing.T) {
	primary, backup := newRPCNode(t), newRPCNode(t)
	setLinkEnv(t, filepath.Join(t.TempDir(), "missing.json"), primary, backup)

	err := runApp(t, linkAction)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.NotErrorIs(t, err, errRunFailed)

	assert.Equal(t, 0, primary.total())
	assert.Equal(t, 0, backup.total())
}

func TestLinkShortKeyFileMakesNoNetworkCalls(t *testing.T) {
	primary, backup := newRPCNode(t), newRPCNode(t)
	path := filepath.Join(t.TempDir(), "short.json")
	require.NoError(t, os.WriteFile(path, []byte("[1,2,3]"), 0o600))
	setLinkEnv(t, path, primary, backup)

	require.Error(t, runApp(t, linkAction))
	assert.Equal(t, 0, primary.total())
	assert.Equal(t, 0, backup.total())
}

func TestWatchMissingKeyFileMakesNoNetworkCalls(t *testing.T) {
	primary, backup := newRPCNode(t), newRPCNode(t)
	setLinkEnv(t, filepath.Join(t.TempDir(), "missing.json"), primary, backup)

	err := runApp(t, watchAction)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, 0, primary.total())
	assert.Equal(t, 0, backup.total())
}

func TestLinkProbesEndpointsAfterKeyLoads(t *testing.T) {
	primary, backup := newRPCNode(t), newRPCNode(t)
	payer := types.NewAccount()
	setLinkEnv(t, writeKeyFile(t, payer), primary, backup)
	t.Setenv("METALINK_EXPECTED_WALLET", payer.PublicKey.ToBase58())

	// empty wallet stops the run at the balance gate
	err := runApp(t, linkAction)
	assert.ErrorIs(t, err, errRunFailed)

	assert.Equal(t, 1, primary.count("getHealth"))
	assert.Equal(t, 1, backup.count("getHealth"))
	assert.Equal(t, 1, primary.count("getBalance"))
	assert.Equal(t, 0, backup.count("getBalance"))
	assert.Equal(t, 0, primary.count("getAccountInfo"))
}
