package ratelimit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"service-template/middleware/ratelimit/domain"
	"service-template/middleware/ratelimit/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rejectBody = `{"detail": "Rate limit exceeded. Please try again later."}`

func okHandler(calls *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		w.Header().Set("X-Downstream", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

type harness struct {
	mr    *miniredis.Miniredis
	store *infra.RedisCounterStore
	stats *infra.MemoryStatsStore
	logs  *bytes.Buffer
	calls int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return &harness{
		mr:    mr,
		store: infra.NewRedisCounterStore(rdb),
		stats: infra.NewMemoryStatsStore(infra.WithTrackKeys(true)),
		logs:  &bytes.Buffer{},
	}
}

func (h *harness) handler(cfg domain.Config) http.Handler {
	return Middleware(Options{
		Config: cfg,
		Store:  h.store,
		Stats:  h.stats,
		Logger: zerolog.New(zerolog.SyncWriter(h.logs)),
	})(okHandler(&h.calls))
}

func limited(limit int) domain.Config {
	return domain.Config{
		Enabled:     true,
		Rule:        domain.Rule{Limit: limit, Window: time.Minute},
		Mode:        domain.FixedWindow,
		Prefix:      "test:",
		ExemptPaths: []string{"/health", "/metrics"},
	}
}

func do(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "http://svc"+path, nil)
	r.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_LimitThenReject(t *testing.T) {
	for _, limit := range []int{1, 2, 5, 60} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			hs := newHarness(t)
			h := hs.handler(limited(limit))

			for i := 1; i <= limit; i++ {
				w := do(h, "/api/v1/examples", "10.0.0.1:1234")
				require.Equal(t, http.StatusOK, w.Code, "request %d", i)
			}

			w := do(h, "/api/v1/examples", "10.0.0.1:1234")
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, rejectBody, w.Body.String())
			assert.Empty(t, w.Header().Get("X-Downstream"))
			assert.Equal(t, int32(limit), atomic.LoadInt32(&hs.calls), "rejected request must not reach downstream")
		})
	}
}

func TestMiddleware_ScenarioWithExpiry(t *testing.T) {
	hs := newHarness(t)
	h := hs.handler(limited(2))

	assert.Equal(t, http.StatusOK, do(h, "/", "1.2.3.4:5000").Code)
	assert.Equal(t, http.StatusOK, do(h, "/", "1.2.3.4:5000").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, "/", "1.2.3.4:5000").Code)

	got, err := hs.mr.Get("test:rate:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
	assert.Equal(t, time.Minute, hs.mr.TTL("test:rate:1.2.3.4"))

	hs.mr.FastForward(61 * time.Second)

	assert.Equal(t, http.StatusOK, do(h, "/", "1.2.3.4:5000").Code)
	got, err = hs.mr.Get("test:rate:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestMiddleware_WindowIsFixed(t *testing.T) {
	hs := newHarness(t)
	h := hs.handler(limited(3))

	do(h, "/", "1.2.3.4:5000")
	hs.mr.FastForward(40 * time.Second)
	do(h, "/", "1.2.3.4:5000")

	assert.Equal(t, 20*time.Second, hs.mr.TTL("test:rate:1.2.3.4"), "later hits must not extend the window")
}

func TestMiddleware_ClientsHaveSeparateQuotas(t *testing.T) {
	hs := newHarness(t)
	h := hs.handler(limited(1))

	assert.Equal(t, http.StatusOK, do(h, "/", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, "/", "10.0.0.1:2").Code)
	assert.Equal(t, http.StatusOK, do(h, "/", "10.0.0.2:1").Code)
}

func TestMiddleware_ConcurrentRequestsNeverExceedLimit(t *testing.T) {
	const (
		limit = 10
		n     = 40
	)
	hs := newHarness(t)
	h := hs.handler(limited(limit))

	var ok, rejected int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch do(h, "/", "9.9.9.9:1").Code {
			case http.StatusOK:
				atomic.AddInt32(&ok, 1)
			case http.StatusTooManyRequests:
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(limit), ok)
	assert.Equal(t, int32(n-limit), rejected)
}

func TestMiddleware_DisabledForwardsEverything(t *testing.T) {
	hs := newHarness(t)
	cfg := limited(1)
	cfg.Enabled = false
	h := hs.handler(cfg)

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, do(h, "/", "10.0.0.1:1").Code)
	}
	assert.Empty(t, hs.mr.Keys(), "disabled limiter must not touch the store")
}

func TestMiddleware_ExemptPathsBypassExhaustedQuota(t *testing.T) {
	hs := newHarness(t)
	h := hs.handler(limited(1))

	require.Equal(t, http.StatusOK, do(h, "/", "10.0.0.1:1").Code)
	require.Equal(t, http.StatusTooManyRequests, do(h, "/", "10.0.0.1:1").Code)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(h, "/health", "10.0.0.1:1").Code)
		assert.Equal(t, http.StatusOK, do(h, "/metrics", "10.0.0.1:1").Code)
	}

	got, _ := hs.mr.Get("test:rate:10.0.0.1")
	assert.Equal(t, "2", got, "exempt paths are not counted")
}

func TestMiddleware_FailOpenWhenStoreDown(t *testing.T) {
	hs := newHarness(t)
	h := hs.handler(limited(1))
	hs.mr.Close()

	for i := 0; i < 3; i++ {
		w := do(h, "/", "10.0.0.1:1")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	}

	out := hs.logs.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, "rate_limit_check_failed")
	assert.Equal(t, int64(3), hs.stats.Snapshot().Total.FailedOpen)
}

func TestMiddleware_RejectionLogsClientIP(t *testing.T) {
	hs := newHarness(t)
	h := hs.handler(limited(1))

	do(h, "/", "10.0.0.7:1")
	do(h, "/", "10.0.0.7:1")

	out := hs.logs.String()
	assert.Contains(t, out, "rate_limit_exceeded")
	assert.Contains(t, out, `"client_ip":"10.0.0.7"`)
}

func TestMiddleware_UnknownClientSharesOneCounter(t *testing.T) {
	hs := newHarness(t)
	h := hs.handler(limited(1))

	assert.Equal(t, http.StatusOK, do(h, "/", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, "/", "").Code)
	assert.True(t, hs.mr.Exists("test:rate:unknown"))
}

func TestMiddleware_PassThroughIsUntouched(t *testing.T) {
	hs := newHarness(t)
	h := hs.handler(limited(5))

	w := do(h, "/", "10.0.0.1:1")
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "yes", w.Header().Get("X-Downstream"))
	assert.Empty(t, w.Header().Get("Retry-After"))
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestMiddleware_RecordsStats(t *testing.T) {
	hs := newHarness(t)
	h := hs.handler(limited(1))

	do(h, "/a", "10.0.0.1:1")
	do(h, "/a", "10.0.0.1:1")

	snap := hs.stats.Snapshot()
	assert.Equal(t, infra.Counters{Allowed: 1, Rejected: 1}, snap.Total)
	assert.Equal(t, infra.Counters{Allowed: 1, Rejected: 1}, snap.ByRoute["GET /a"])
	assert.Equal(t, infra.Counters{Allowed: 1, Rejected: 1}, snap.ByKey["10.0.0.1"])
}

type brokenStats struct{}

func (brokenStats) Record(context.Context, domain.StatsEvent) error { return errors.New("down") }

func TestMiddleware_StatsFailureDoesNotAffectRequest(t *testing.T) {
	hs := newHarness(t)
	h := Middleware(Options{
		Config: limited(1),
		Store:  hs.store,
		Stats:  brokenStats{},
	})(okHandler(nil))

	assert.Equal(t, http.StatusOK, do(h, "/", "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, "/", "10.0.0.1:1").Code)
}
