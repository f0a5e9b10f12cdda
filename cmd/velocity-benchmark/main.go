// velocity-benchmark drives load against a velocity server and reports
// throughput and latency percentiles.
//
// Usage:
//
//	velocity-benchmark [--addr host:port] [--clients 50] [--requests 100000]
//	                   [--pipeline 1] [--test set|get|mixed|incr|ping]
package main

import (
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/velocitykv/velocity/internal/protocol"
	"github.com/velocitykv/velocity/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "velocity-benchmark",
		Usage:   "benchmark a velocity server",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Value: "127.0.0.1:6379", Usage: "server address"},
			&cli.IntFlag{Name: "clients", Aliases: []string{"c"}, Value: 50, Usage: "number of parallel clients"},
			&cli.IntFlag{Name: "requests", Aliases: []string{"n"}, Value: 100000, Usage: "total number of requests"},
			&cli.IntFlag{Name: "pipeline", Aliases: []string{"P"}, Value: 1, Usage: "requests per round trip"},
			&cli.StringFlag{Name: "test", Aliases: []string{"t"}, Value: "mixed", Usage: "set, get, mixed, incr or ping"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	addr     string
	clients  int
	requests int
	pipeline int
	test     string
}

func run(c *cli.Context) error {
	opts := options{
		addr:     c.String("addr"),
		clients:  c.Int("clients"),
		requests: c.Int("requests"),
		pipeline: c.Int("pipeline"),
		test:     c.String("test"),
	}
	if opts.clients < 1 || opts.requests < 1 || opts.pipeline < 1 {
		return fmt.Errorf("clients, requests and pipeline must be positive")
	}
	switch opts.test {
	case "set", "get", "mixed", "incr", "ping":
	default:
		return fmt.Errorf("unknown test %q", opts.test)
	}

	out := c.App.Writer
	fmt.Fprintln(out, "====== velocity benchmark ======")
	fmt.Fprintf(out, "Server: %s\n", opts.addr)
	fmt.Fprintf(out, "Clients: %d\n", opts.clients)
	fmt.Fprintf(out, "Requests: %d\n", opts.requests)
	fmt.Fprintf(out, "Pipeline: %d\n", opts.pipeline)
	fmt.Fprintf(out, "Test: %s\n", opts.test)
	fmt.Fprintln(out)

	res := benchmark(opts)

	fmt.Fprintln(out, "====== Results ======")
	fmt.Fprintf(out, "Total time: %v\n", res.elapsed)
	fmt.Fprintf(out, "Completed: %d\n", res.completed)
	fmt.Fprintf(out, "Errors: %d\n", res.errors)
	if res.completed > 0 {
		fmt.Fprintf(out, "Requests/sec: %.2f\n", float64(res.completed)/res.elapsed.Seconds())
		fmt.Fprintf(out, "Latency p50: %v  p99: %v  max: %v\n",
			res.latency.percentile(50), res.latency.percentile(99), res.latency.percentile(100))
	}
	return nil
}

type result struct {
	elapsed   time.Duration
	completed int64
	errors    int64
	latency   *latencies
}

func benchmark(opts options) result {
	var completed, failed atomic.Int64
	lat := &latencies{}
	perClient := opts.requests / opts.clients

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < opts.clients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()

			conn, err := net.Dial("tcp", opts.addr)
			if err != nil {
				failed.Add(int64(perClient))
				return
			}
			defer conn.Close()

			writer := protocol.NewWriter(conn)
			writer.SetAutoFlush(false)
			reader := protocol.NewReader(conn)

			for j := 0; j < perClient; j += opts.pipeline {
				batch := min(opts.pipeline, perClient-j)
				roundTrip := time.Now()
				for k := 0; k < batch; k++ {
					_ = writer.WriteRequest(requestFor(opts.test, clientID, j+k)...)
				}
				if err := writer.Flush(); err != nil {
					failed.Add(int64(batch))
					return
				}
				for k := 0; k < batch; k++ {
					v, err := reader.ReadValue()
					if err != nil {
						failed.Add(int64(batch - k))
						return
					}
					if v.IsError() {
						failed.Add(1)
						continue
					}
					completed.Add(1)
				}
				lat.add(time.Since(roundTrip))
			}
		}(i)
	}
	wg.Wait()

	return result{
		elapsed:   time.Since(start),
		completed: completed.Load(),
		errors:    failed.Load(),
		latency:   lat,
	}
}

func requestFor(test string, clientID, n int) []string {
	key := fmt.Sprintf("key:%d:%d", clientID, n)
	switch test {
	case "set":
		return []string{"SET", key, fmt.Sprintf("value:%d:%d", clientID, n)}
	case "get":
		return []string{"GET", key}
	case "mixed":
		if n%2 == 0 {
			return []string{"SET", key, fmt.Sprintf("value:%d:%d", clientID, n)}
		}
		return []string{"GET", fmt.Sprintf("key:%d:%d", clientID, n-1)}
	case "incr":
		return []string{"INCR", fmt.Sprintf("counter:%d", clientID)}
	default:
		return []string{"PING"}
	}
}
