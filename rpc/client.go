package rpc

import (
	"fmt"
	"net/rpc"
	"sync"
)

// Client represents a memory pool client. It tracks its own
// outstanding handles only to support diagnostics; the server is the
// source of truth for what is still live.
type Client struct {
	id        int
	client    *rpc.Client
	allocated map[uint64]uint64 // handle -> size
	mu        sync.Mutex
}

// NewClient creates a new memory pool client.
func NewClient(id int, address string) (*Client, error) {
	client, err := rpc.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %v", err)
	}

	return &Client{
		id:        id,
		client:    client,
		allocated: make(map[uint64]uint64),
	}, nil
}

// Allocate allocates memory through the server, returning an opaque
// handle in place of the pointer the local allocator would give out.
func (c *Client) Allocate(size uint64) (uint64, error) {
	req := &AllocRequest{Size: size}
	resp := &AllocResponse{}

	if err := c.client.Call("Server.Allocate", req, resp); err != nil {
		return 0, fmt.Errorf("RPC call failed: %v", err)
	}
	if resp.Error != "" {
		return 0, fmt.Errorf("server error: %s", resp.Error)
	}

	c.mu.Lock()
	c.allocated[resp.Handle] = size
	c.mu.Unlock()

	return resp.Handle, nil
}

// Free frees memory through the server.
func (c *Client) Free(handle uint64) error {
	req := &FreeRequest{Handle: handle}
	resp := &FreeResponse{}

	if err := c.client.Call("Server.Free", req, resp); err != nil {
		return fmt.Errorf("RPC call failed: %v", err)
	}
	if resp.Error != "" {
		return fmt.Errorf("server error: %s", resp.Error)
	}

	c.mu.Lock()
	delete(c.allocated, handle)
	c.mu.Unlock()

	return nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}
