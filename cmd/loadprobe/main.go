// Command loadprobe dispara uma rajada de requisições contra a API e mostra
// quantas foram permitidas e quantas foram bloqueadas pelo rate limiter.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var opts probeOptions
	flag.StringVar(&opts.URL, "url", "http://localhost:8000/health", "URL alvo")
	flag.IntVar(&opts.Requests, "n", 100, "total de requisições")
	flag.IntVar(&opts.Concurrency, "c", 10, "workers em paralelo")
	flag.StringVar(&opts.Header, "header", "", `header extra, ex.: "X-API-Key: abc"`)
	flag.DurationVar(&opts.Timeout, "timeout", 5*time.Second, "timeout por requisição")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	res := runProbe(ctx, nil, opts)
	printSummary(os.Stdout, res)
	if res.Errors > 0 {
		os.Exit(1)
	}
}
