package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
)

type probeOptions struct {
	URL         string
	Requests    int
	Concurrency int
	Header      string // "Nome: valor", opcional
	Timeout     time.Duration
}

// probeResult conta as respostas por classe.
type probeResult struct {
	Allowed  int64 // 2xx
	Rejected int64 // 429
	Busy     int64 // 503
	Other    int64
	Errors   int64
	Elapsed  time.Duration
}

func (r probeResult) Total() int64 {
	return r.Allowed + r.Rejected + r.Busy + r.Other + r.Errors
}

// runProbe dispara opts.Requests requisições GET com opts.Concurrency workers.
func runProbe(ctx context.Context, client *http.Client, opts probeOptions) probeResult {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	hName, hValue := splitHeader(opts.Header)

	var allowed, rejected, busy, other, errs atomic.Int64
	jobs := make(chan struct{})
	var wg sync.WaitGroup

	start := time.Now()
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
				if err != nil {
					errs.Add(1)
					continue
				}
				if hName != "" {
					req.Header.Set(hName, hValue)
				}
				resp, err := client.Do(req)
				if err != nil {
					errs.Add(1)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()

				switch {
				case resp.StatusCode >= 200 && resp.StatusCode < 300:
					allowed.Add(1)
				case resp.StatusCode == http.StatusTooManyRequests:
					rejected.Add(1)
				case resp.StatusCode == http.StatusServiceUnavailable:
					busy.Add(1)
				default:
					other.Add(1)
				}
			}
		}()
	}

feed:
	for i := 0; i < opts.Requests; i++ {
		select {
		case jobs <- struct{}{}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return probeResult{
		Allowed:  allowed.Load(),
		Rejected: rejected.Load(),
		Busy:     busy.Load(),
		Other:    other.Load(),
		Errors:   errs.Load(),
		Elapsed:  time.Since(start),
	}
}

func splitHeader(h string) (string, string) {
	name, value, ok := strings.Cut(h, ":")
	if !ok {
		return "", ""
	}
	return strings.TrimSpace(name), strings.TrimSpace(value)
}

func printSummary(w io.Writer, r probeResult) {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Fprintf(w, "%d requisições em %s\n", r.Total(), r.Elapsed.Round(time.Millisecond))
	green.Fprintf(w, "  permitidas (2xx):  %d\n", r.Allowed)
	red.Fprintf(w, "  bloqueadas (429):  %d\n", r.Rejected)
	yellow.Fprintf(w, "  ocupado (503):     %d\n", r.Busy)
	yellow.Fprintf(w, "  outros status:     %d\n", r.Other)
	if r.Errors > 0 {
		red.Fprintf(w, "  erros de rede:     %d\n", r.Errors)
	}
}
