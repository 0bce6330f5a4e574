// Package rpc is the network collaborator (SPEC_FULL.md §5): it
// exposes one mpool.Pool to remote clients over net/rpc. Allocator
// handles (allocator.Ptr) carry unexported Go pointers and cannot
// travel over gob, so the server hands out opaque uint64 handle IDs
// instead and keeps the id->Ptr mapping itself.
package rpc

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"

	"github.com/shenjiangwei/buddymalloc/allocator"
	"github.com/shenjiangwei/buddymalloc/mpool"
)

// Server represents the memory pool server.
type Server struct {
	pool *mpool.Pool

	mu      sync.Mutex
	handles map[uint64]allocator.Ptr
	nextID  uint64
}

// AllocRequest represents a memory allocation request.
type AllocRequest struct {
	Size uint64
}

// AllocResponse represents a memory allocation response.
type AllocResponse struct {
	Handle uint64
	Error  string
}

// FreeRequest represents a memory free request.
type FreeRequest struct {
	Handle uint64
}

// FreeResponse represents a memory free response.
type FreeResponse struct {
	Error string
}

// NewServer creates a new memory pool server.
func NewServer() (*Server, error) {
	pool, err := mpool.New(allocator.New())
	if err != nil {
		return nil, fmt.Errorf("failed to create memory pool: %v", err)
	}

	server := &Server{
		pool:    pool,
		handles: make(map[uint64]allocator.Ptr),
		nextID:  1,
	}

	rpc.Register(server)
	return server, nil
}

// Start starts the server on the specified address.
func (s *Server) Start(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to start server: %v", err)
	}
	defer listener.Close()

	Info("server listening on %s", address)

	for {
		conn, err := listener.Accept()
		if err != nil {
			Error("failed to accept connection: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

func (s *Server) Allocate(req *AllocRequest, resp *AllocResponse) error {
	p, err := s.pool.Allocate(req.Size)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handles[id] = p
	s.mu.Unlock()

	resp.Handle = id
	return nil
}

func (s *Server) Free(req *FreeRequest, resp *FreeResponse) error {
	s.mu.Lock()
	p, ok := s.handles[req.Handle]
	delete(s.handles, req.Handle)
	s.mu.Unlock()

	if !ok {
		resp.Error = "unknown handle"
		return nil
	}

	if err := s.pool.Free(p); err != nil {
		resp.Error = err.Error()
	}
	return nil
}

// Close releases every block the pool holds, including ones still
// checked out to clients that never freed them.
func (s *Server) Close() error {
	return s.pool.Close()
}
