package supabase

import (
	"fmt"

	"github.com/supabase-community/supabase-go"
	"image-studio-backend/internal/config"
)

// Client wraps the supabase-go client. The ledger uses it for PostgREST RPC
// when no direct database connection is configured.
type Client struct {
	Supabase *supabase.Client
}

func NewClient(cfg *config.Config) (*Client, error) {
	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabasePublishableKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{Supabase: client}, nil
}

func (c *Client) Rpc(name, count string, rpcBody interface{}) string {
	return c.Supabase.Rpc(name, count, rpcBody)
}
