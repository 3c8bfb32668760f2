package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// scriptWindow stands in for the Redis server side of the admit script.
// Each evaluation runs the trim/count/conditional-add sequence under one
// mutex hold, matching how Redis executes a script: atomically, one at a
// time. Calls counts evaluations so tests can assert one round trip per
// admit.
type scriptWindow struct {
	mu    sync.Mutex
	sets  map[string][]int64
	calls int
}

func newScriptWindow() *scriptWindow {
	return &scriptWindow{sets: make(map[string][]int64)}
}

func argInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func (s *scriptWindow) eval(keys []string, args []interface{}) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	windowStart := argInt64(args[0])
	now := argInt64(args[1])
	max := argInt64(args[2])
	key := keys[0]

	kept := s.sets[key][:0]
	for _, score := range s.sets[key] {
		if score > windowStart {
			kept = append(kept, score)
		}
	}

	if int64(len(kept)) >= max {
		oldest := int64(0)
		for _, score := range kept {
			if oldest == 0 || score < oldest {
				oldest = score
			}
		}
		s.sets[key] = kept
		return []interface{}{int64(0), int64(len(kept)), oldest}
	}

	s.sets[key] = append(kept, now)
	return []interface{}{int64(1), int64(len(kept) + 1), int64(0)}
}

func (s *scriptWindow) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(s.eval(keys, args), nil)
}

func (s *scriptWindow) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(s.eval(keys, args), nil)
}

func (s *scriptWindow) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return s.Eval(ctx, script, keys, args...)
}

func (s *scriptWindow) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return s.EvalSha(ctx, sha1, keys, args...)
}

func (s *scriptWindow) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	cmd := redis.NewBoolSliceCmd(ctx)
	cmd.SetVal(make([]bool, len(hashes)))
	return cmd
}

func (s *scriptWindow) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("")
	return cmd
}

func newScriptedStore(fake *scriptWindow, window time.Duration, maxRequests int) *RedisStore {
	return &RedisStore{
		scripts:     fake,
		window:      window,
		maxRequests: maxRequests,
	}
}

func TestRedisStore_AdmitFillsWindow(t *testing.T) {
	fake := newScriptWindow()
	store := newScriptedStore(fake, 20*time.Second, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := store.Admit(ctx, "203.0.113.30")
		if err != nil {
			t.Fatalf("unexpected error at request %d: %v", i+1, err)
		}
		if !decision.Allowed {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
		if want := 3 - i - 1; decision.Remaining != want {
			t.Errorf("request %d Remaining = %d, want %d", i+1, decision.Remaining, want)
		}
	}

	decision, err := store.Admit(ctx, "203.0.113.30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected rejection with a full window")
	}
	if decision.RetryAfter <= 0 || decision.RetryAfter > 20*time.Second {
		t.Errorf("RetryAfter = %v, want within (0s, 20s]", decision.RetryAfter)
	}

	if fake.calls != 4 {
		t.Errorf("script evaluations = %d, want 4 (one per admit)", fake.calls)
	}
}

func TestRedisStore_RejectionDoesNotConsume(t *testing.T) {
	fake := newScriptWindow()
	store := newScriptedStore(fake, 20*time.Second, 1)
	ctx := context.Background()

	if _, err := store.Admit(ctx, "203.0.113.31"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 5; i++ {
		decision, err := store.Admit(ctx, "203.0.113.31")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if decision.Allowed {
			t.Fatalf("expected rejection on attempt %d", i+1)
		}
	}

	if got := len(fake.sets["ratelimit:203.0.113.31"]); got != 1 {
		t.Errorf("window holds %d entries, want 1 (rejections must not record)", got)
	}
}

// Exercises the race where two requests both see the last free slot:
// with the trim, count, and record in a single script evaluation the
// window can never over-admit, no matter how the callers interleave.
func TestRedisStore_ConcurrentAdmissions(t *testing.T) {
	const limit = 15
	const attempts = 40

	fake := newScriptWindow()
	store := newScriptedStore(fake, 20*time.Second, limit)
	ctx := context.Background()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := store.Admit(ctx, "203.0.113.32")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if decision.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != limit {
		t.Errorf("admitted = %d, want exactly %d", got, limit)
	}
	if got := len(fake.sets["ratelimit:203.0.113.32"]); got != limit {
		t.Errorf("window holds %d entries, want %d", got, limit)
	}
}

func TestRedisStore_IndependentClients(t *testing.T) {
	fake := newScriptWindow()
	store := newScriptedStore(fake, 20*time.Second, 1)
	ctx := context.Background()

	if _, err := store.Admit(ctx, "203.0.113.33"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decision, _ := store.Admit(ctx, "203.0.113.33")
	if decision.Allowed {
		t.Fatal("expected first client to be limited")
	}

	decision, _ = store.Admit(ctx, "203.0.113.34")
	if !decision.Allowed {
		t.Fatal("expected second client to be admitted")
	}
}
