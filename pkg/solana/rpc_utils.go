package solana

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	log "github.com/sirupsen/logrus"
)

// ErrNoHealthyRPC is returned when no configured endpoint answers getHealth
var ErrNoHealthyRPC = errors.New("no healthy RPC endpoint")

// RPCCheckResult represents the result of checking an RPC endpoint
type RPCCheckResult struct {
	URL     string        `json:"url"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// checkRPC sends getHealth to one endpoint
func checkRPC(ctx context.Context, url string, timeout time.Duration) RPCCheckResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := rpc.New(url)
	defer client.Close()

	health, err := client.GetHealth(ctx)
	if err == nil && health != rpc.HealthOk {
		err = fmt.Errorf("unexpected health %q", health)
	}
	if err != nil {
		msg := err.Error()
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			msg = fmt.Sprintf("rpc error %d: %s", rpcErr.Code, rpcErr.Message)
		}
		return RPCCheckResult{URL: url, OK: false, Latency: time.Since(start), Error: msg}
	}

	return RPCCheckResult{URL: url, OK: true, Latency: time.Since(start)}
}

// CheckRPCListAsync probes all endpoints in parallel. Results keep the
// order of rpcList.
func CheckRPCListAsync(ctx context.Context, rpcList []string, timeout time.Duration) []RPCCheckResult {
	results := make([]RPCCheckResult, len(rpcList))

	var wg sync.WaitGroup
	for i, url := range rpcList {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			results[i] = checkRPC(ctx, url, timeout)
		}(i, url)
	}
	wg.Wait()

	return results
}

// PickHealthyRPC returns the first endpoint in list order that is healthy.
// A single endpoint is returned without probing.
func PickHealthyRPC(ctx context.Context, rpcList []string, timeout time.Duration) (string, error) {
	switch len(rpcList) {
	case 0:
		return "", ErrNoHealthyRPC
	case 1:
		return rpcList[0], nil
	}

	for _, res := range CheckRPCListAsync(ctx, rpcList, timeout) {
		if res.OK {
			return res.URL, nil
		}
		log.WithField("rpc", res.URL).Warnf("RPC endpoint unhealthy: %s", res.Error)
	}
	return "", fmt.Errorf("%w among %d candidates", ErrNoHealthyRPC, len(rpcList))
}
