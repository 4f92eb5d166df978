package valkey

import (
	"context"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// Client is the shared Valkey connection behind the cache, the visit
// counters and the session flags.
type Client struct {
	client valkey.Client
}

// New creates a new Valkey client.
func New(addr string) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Client{client: client}, nil
}

// Ping checks the connection, used by the readiness probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// Close releases the client.
func (c *Client) Close() {
	c.client.Close()
}
