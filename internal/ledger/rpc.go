package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"image-studio-backend/internal/models"
)

// RPCClient is the subset of the supabase-go client used for PostgREST RPC.
type RPCClient interface {
	Rpc(name, count string, rpcBody interface{}) string
}

// RPCIncrementer calls the same increment_* functions through PostgREST.
// Used when the service has no direct database connection.
type RPCIncrementer struct {
	client RPCClient
}

func NewRPCIncrementer(client RPCClient) *RPCIncrementer {
	return &RPCIncrementer{client: client}
}

func (r *RPCIncrementer) Name() string { return "rpc" }

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Increment ignores ctx: the PostgREST client has no context support.
func (r *RPCIncrementer) Increment(_ context.Context, ref models.IdentityRef) (int, error) {
	t, err := targetFor(ref)
	if err != nil {
		return 0, err
	}

	param := "p_account_id"
	if ref.Kind == models.IdentityLead {
		param = "p_network_address"
	}

	body := r.client.Rpc(t.function, "", map[string]string{param: ref.Key})
	if body == "" {
		return 0, fmt.Errorf("%w: empty response from rpc %s", ErrUnavailable, t.function)
	}

	var n *int
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		var rpcErr rpcError
		if json.Unmarshal([]byte(body), &rpcErr) == nil && rpcErr.Message != "" {
			return 0, fmt.Errorf("%w: rpc %s: %s (%s)", ErrUnavailable, t.function, rpcErr.Message, rpcErr.Code)
		}
		return 0, fmt.Errorf("decode rpc %s response: %w", t.function, err)
	}
	if n == nil {
		return 0, ErrRowNotFound
	}

	return *n, nil
}
