package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Confirmer waits until a sent transaction reaches a commitment level
type Confirmer interface {
	Confirm(ctx context.Context, sig solana.Signature) error
}

// PollConfirmer polls getSignatureStatuses at a fixed pace
type PollConfirmer struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
	limiter    *rate.Limiter
}

// NewPollConfirmer creates a confirmer that checks at most once per interval
func NewPollConfirmer(client *rpc.Client, commitment rpc.CommitmentType, interval time.Duration) *PollConfirmer {
	return &PollConfirmer{
		rpc:        client,
		commitment: commitment,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (p *PollConfirmer) Confirm(ctx context.Context, sig solana.Signature) error {
	for {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("confirmation of %s: %w", sig, contextErr(ctx, err))
		}
		done, err := p.Check(ctx, sig)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Check asks for the signature status once. It reports done when the
// transaction reached the commitment level or failed; a failed transaction
// is returned as a *TransactionError. Lookup errors are logged and reported
// as not done.
func (p *PollConfirmer) Check(ctx context.Context, sig solana.Signature) (bool, error) {
	resp, err := p.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		log.WithField("signature", sig.String()).Warnf("Failed to get signature status: %v", err)
		return false, nil
	}
	if resp == nil || len(resp.Value) == 0 || resp.Value[0] == nil {
		return false, nil
	}

	status := resp.Value[0]
	if status.Err != nil {
		return true, &TransactionError{
			Signature: sig.String(),
			Err:       fmt.Errorf("%v", status.Err),
		}
	}
	return reachedCommitment(status.ConfirmationStatus, p.commitment), nil
}

func reachedCommitment(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	switch want {
	case rpc.CommitmentProcessed:
		return status != ""
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}

// WSConfirmer waits for a signatureNotification over the node's websocket.
// If the subscription cannot be set up it falls back to polling.
type WSConfirmer struct {
	endpoint   string
	commitment rpc.CommitmentType
	fallback   *PollConfirmer
	dialer     *websocket.Dialer
}

// NewWSConfirmer creates a websocket confirmer; fallback may be nil
func NewWSConfirmer(endpoint string, commitment rpc.CommitmentType, fallback *PollConfirmer) *WSConfirmer {
	return &WSConfirmer{
		endpoint:   endpoint,
		commitment: commitment,
		fallback:   fallback,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wsParams struct {
	Subscription int64           `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type wsMessage struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *wsError        `json:"error"`
	Method string          `json:"method"`
	Params *wsParams       `json:"params"`
}

type signatureNotification struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Err interface{} `json:"err"`
	} `json:"value"`
}

const subscribeRequestID = 1

func (w *WSConfirmer) Confirm(ctx context.Context, sig solana.Signature) error {
	err := w.subscribe(ctx, sig)
	if err == nil {
		return nil
	}

	var txErr *TransactionError
	if errors.As(err, &txErr) || ctx.Err() != nil || w.fallback == nil {
		return err
	}

	log.WithField("signature", sig.String()).Warnf("Signature subscription failed, polling instead: %v", err)
	return w.fallback.Confirm(ctx, sig)
}

func (w *WSConfirmer) subscribe(ctx context.Context, sig solana.Signature) error {
	conn, _, err := w.dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Close unblocks ReadMessage when the context ends
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      subscribeRequestID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			sig.String(),
			map[string]string{"commitment": string(w.commitment)},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	var subID *int64
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("confirmation of %s: %w", sig, ctx.Err())
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debugf("Ignoring malformed websocket message: %v", err)
			continue
		}

		switch {
		case msg.ID != nil && *msg.ID == subscribeRequestID:
			if msg.Error != nil {
				return fmt.Errorf("signatureSubscribe rejected: %s", msg.Error.Message)
			}
			var id int64
			if err := json.Unmarshal(msg.Result, &id); err != nil {
				return fmt.Errorf("invalid subscription id: %w", err)
			}
			subID = &id

			// The transaction may have landed before the subscription existed
			if w.fallback != nil {
				done, err := w.fallback.Check(ctx, sig)
				if err != nil || done {
					return err
				}
			}

		case msg.Method == "signatureNotification" && msg.Params != nil:
			if subID != nil && msg.Params.Subscription != *subID {
				continue
			}
			var note signatureNotification
			if err := json.Unmarshal(msg.Params.Result, &note); err != nil {
				return fmt.Errorf("invalid signature notification: %w", err)
			}
			if note.Value.Err != nil {
				return &TransactionError{
					Signature: sig.String(),
					Err:       fmt.Errorf("%v", note.Value.Err),
				}
			}
			log.WithFields(log.Fields{
				"signature": sig.String(),
				"slot":      note.Context.Slot,
			}).Debug("Signature notification received")
			return nil
		}
	}
}

func contextErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
