package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/shenjiangwei/buddymalloc/allocator"
	"github.com/shenjiangwei/buddymalloc/mpool"
	"github.com/shenjiangwei/buddymalloc/rpc"
)

const (
	MB = 1024 * 1024
	GB = 1024 * 1024 * 1024

	minDemoBlock = 4 * 1024
	maxDemoBlock = 4 * MB

	serverAddress = "localhost:1234"
)

func main() {
	mode := flag.String("mode", "demo", "Run mode: demo, stress")
	flag.Parse()

	rand.Seed(time.Now().UnixNano())

	switch *mode {
	case "demo":
		runDemo()
	case "stress":
		runStress()
	default:
		fmt.Printf("Unknown mode: %s\n", *mode)
		fmt.Println("Available modes: demo, stress")
		os.Exit(1)
	}
}

// runDemo exercises the allocator directly, then the same workload
// again through the rpc collaborator, to show both paths working.
func runDemo() {
	a := allocator.New()
	fmt.Println("local allocator:")
	exerciseDirect(a)

	server, err := rpc.NewServer()
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	go func() {
		if err := server.Start(serverAddress); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()
	time.Sleep(200 * time.Millisecond)
	defer server.Close()

	client, err := rpc.NewClient(0, serverAddress)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	fmt.Println("rpc collaborator:")
	exerciseRPC(client)
}

func exerciseDirect(a *allocator.Allocator) {
	var ptrs []allocator.Ptr
	for i := 0; i < 20; i++ {
		size := randomBlockSize()
		p, err := a.Allocate(size)
		if err != nil {
			log.Printf("allocate %d bytes: %v", size, err)
			continue
		}
		ptrs = append(ptrs, p)
	}

	fmt.Printf("  allocated blocks: %d, free bytes: %d, allocated bytes: %d\n",
		a.NumAllocatedBlocks(), a.NumFreeBytes(), a.NumAllocatedBytes())

	for _, p := range ptrs {
		if err := a.Free(p); err != nil {
			log.Printf("free: %v", err)
		}
	}
	fmt.Printf("  after freeing: free bytes: %d, allocated bytes: %d\n",
		a.NumFreeBytes(), a.NumAllocatedBytes())
}

func exerciseRPC(c *rpc.Client) {
	var handles []uint64
	for i := 0; i < 20; i++ {
		size := randomBlockSize()
		h, err := c.Allocate(size)
		if err != nil {
			log.Printf("rpc allocate %d bytes: %v", size, err)
			continue
		}
		handles = append(handles, h)
	}
	fmt.Printf("  rpc allocated %d handles\n", len(handles))

	for _, h := range handles {
		if err := c.Free(h); err != nil {
			log.Printf("rpc free: %v", err)
		}
	}
	fmt.Println("  rpc handles freed")
}

func randomBlockSize() uint64 {
	span := maxDemoBlock - minDemoBlock
	return uint64(minDemoBlock + rand.Intn(span))
}

// runStress hammers one allocator.Allocator (through a mpool.Pool) from
// many goroutines at once, reporting elapsed time, operation counts,
// pool hit/miss counts and the final allocated-bytes counter.
func runStress() {
	a := allocator.New()
	pool, err := mpool.New(a)
	if err != nil {
		log.Fatalf("failed to build pool: %v", err)
	}
	defer pool.Close()

	const (
		workers = 16
		ops     = 200_000
	)

	var (
		mu      sync.Mutex
		live    []allocator.Ptr
		writes  uint64
		frees   uint64
		started = time.Now()
	)

	var wg sync.WaitGroup
	opCounter := make(chan struct{}, ops)
	for i := 0; i < ops; i++ {
		opCounter <- struct{}{}
	}
	close(opCounter)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range opCounter {
				if rand.Float64() < 0.7 {
					size := randomBlockSize()
					p, err := pool.Allocate(size)
					if err != nil {
						continue
					}
					mu.Lock()
					live = append(live, p)
					writes++
					mu.Unlock()
					continue
				}

				mu.Lock()
				if len(live) == 0 {
					mu.Unlock()
					continue
				}
				idx := rand.Intn(len(live))
				p := live[idx]
				live[idx] = live[len(live)-1]
				live = live[:len(live)-1]
				mu.Unlock()

				if err := pool.Free(p); err != nil {
					log.Printf("free: %v", err)
					continue
				}
				mu.Lock()
				frees++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, p := range live {
		pool.Free(p)
	}

	stats := pool.Stats()
	fmt.Printf("stress complete in %v\n", time.Since(started))
	fmt.Printf("  writes: %d, frees: %d\n", writes, frees)
	fmt.Printf("  pool hits: %d, pool misses: %d\n", stats.PoolHits, stats.PoolMisses)
	fmt.Printf("  allocated bytes: %d\n", a.NumAllocatedBytes())
}
