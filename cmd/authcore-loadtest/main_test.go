package main

import (
	"bytes"
	"context"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestQuantileNearestRank(t *testing.T) {
	r := phaseResult{sorted: []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	cases := map[float64]time.Duration{0: 1, 0.5: 5, 0.95: 10, 0.91: 10, 0.9: 9, 1: 10}
	for q, want := range cases {
		if got := r.quantile(q); got != want {
			t.Fatalf("q=%v: expected %d, got %d", q, want, got)
		}
	}
	if got := (phaseResult{}).quantile(0.5); got != 0 {
		t.Fatalf("empty: expected 0, got %d", got)
	}
}

func TestRunPhaseCountsEveryOp(t *testing.T) {
	var calls atomic.Int64
	res := runPhase(100, 8, func(_ *rand.Rand, i int) bool {
		calls.Add(1)
		return i%10 != 0
	})
	if calls.Load() != 100 || res.ops != 100 {
		t.Fatalf("expected 100 ops, calls=%d result=%d", calls.Load(), res.ops)
	}
	if res.failures != 10 {
		t.Fatalf("expected 10 failures, got %d", res.failures)
	}
	for i := 1; i < len(res.sorted); i++ {
		if res.sorted[i] < res.sorted[i-1] {
			t.Fatal("samples not sorted")
		}
	}
}

func TestRunAgainstEmbeddedRedis(t *testing.T) {
	var out bytes.Buffer
	opts := options{users: 3, concurrency: 2, ops: 20, logins: 3, prefix: "lt"}
	if err := run(context.Background(), opts, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"embedded miniredis", "login", "refresh", "validate", "logout", "counters:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}
