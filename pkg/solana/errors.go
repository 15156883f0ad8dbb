package solana

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// TransactionError is a failed send or a transaction that landed with an
// error. Logs holds the program logs the node attached, if any.
type TransactionError struct {
	Signature string
	Logs      []string
	Err       error
}

func (e *TransactionError) Error() string {
	if e.Signature != "" {
		return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
	}
	return fmt.Sprintf("transaction failed: %v", e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// TransactionLogs returns the program logs carried by err, if any
func TransactionLogs(err error) []string {
	var txErr *TransactionError
	if errors.As(err, &txErr) {
		return txErr.Logs
	}
	return nil
}

// newSendError wraps a sendTransaction failure, keeping the simulation logs
// the node returns in the JSON-RPC error data.
func newSendError(err error) *TransactionError {
	txErr := &TransactionError{Err: err}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		txErr.Logs = logsFromRPCData(rpcErr.Data)
	}
	return txErr
}

func logsFromRPCData(data interface{}) []string {
	fields, ok := data.(map[string]interface{})
	if !ok {
		return nil
	}
	switch logs := fields["logs"].(type) {
	case []string:
		return logs
	case []interface{}:
		out := make([]string, 0, len(logs))
		for _, line := range logs {
			if s, ok := line.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
