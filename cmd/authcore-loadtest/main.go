// Command authcore-loadtest drives concurrent login, refresh, validate and
// logout calls against an in-process Service and prints latency percentiles.
// Sessions live in Redis (REDIS_ADDR or -redis-addr) or an embedded
// miniredis; users live in memory.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/store/memory"
)

const loadPassword = "load-test-password-1"

type options struct {
	users       int
	concurrency int
	ops         int
	logins      int
	rotate      bool
	redisAddr   string
	prefix      string
}

// account holds the latest tokens for one registered user. Refresh workers
// swap tokens concurrently, so access goes through the pool lock.
type account struct {
	email   string
	access  string
	refresh string
}

type pool struct {
	mu       sync.Mutex
	accounts []account
}

func (p *pool) get(i int) account {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accounts[i]
}

func (p *pool) update(i int, access, refresh string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[i].access = access
	if refresh != "" {
		p.accounts[i].refresh = refresh
	}
}

func main() {
	var opts options
	flag.IntVar(&opts.users, "users", 50, "number of accounts to register")
	flag.IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	flag.IntVar(&opts.ops, "ops", 20000, "operations per refresh/validate phase")
	flag.IntVar(&opts.logins, "logins", 500, "operations in the login phase")
	flag.BoolVar(&opts.rotate, "rotate", false, "enable refresh-token rotation")
	flag.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; empty starts an embedded miniredis")
	flag.StringVar(&opts.prefix, "prefix", "as", "session key prefix")
	flag.Parse()

	if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.logins <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops and logins must be > 0")
		os.Exit(2)
	}
	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openRedis(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Fprintf(out, "sessions: redis %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Fprintf(out, "sessions: embedded miniredis %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	client, closeRedis, err := openRedis(opts.redisAddr, out)
	if err != nil {
		return err
	}
	defer closeRedis()

	cfg := authcore.DefaultConfig()
	cfg.JWT.Secret = []byte("loadtest-secret-loadtest-secret-!")
	cfg.Session.RotateOnRefresh = opts.rotate
	cfg.Session.RedisPrefix = opts.prefix
	// Cheap hashing keeps the run about session and token paths.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Metrics.EnableLatencyHistograms = true

	svc, err := authcore.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(memory.NewUserStore(nil)).
		WithLogger(slog.New(slog.DiscardHandler)).
		Build()
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}
	defer svc.Close()

	p := &pool{accounts: make([]account, opts.users)}
	seeded := time.Now()
	for i := range p.accounts {
		email := fmt.Sprintf("load-%d@example.com", i)
		res, err := svc.Register(ctx, email, loadPassword, "")
		if err != nil {
			return fmt.Errorf("register %s: %w", email, err)
		}
		p.accounts[i] = account{email: email, access: res.AccessToken, refresh: res.RefreshToken}
	}
	fmt.Fprintf(out, "registered %d accounts in %s\n", opts.users, time.Since(seeded).Round(time.Millisecond))

	pick := func(r *rand.Rand) int { return r.IntN(len(p.accounts)) }

	phases := []struct {
		name string
		ops  int
		op   func(r *rand.Rand, i int) bool
	}{
		{"login", opts.logins, func(r *rand.Rand, _ int) bool {
			_, err := svc.Login(ctx, p.get(pick(r)).email, loadPassword)
			return err == nil
		}},
		{"refresh", opts.ops, func(r *rand.Rand, _ int) bool {
			idx := pick(r)
			res, err := svc.RefreshToken(ctx, p.get(idx).refresh)
			if err != nil {
				// Under rotation another worker may have won the swap.
				return false
			}
			p.update(idx, res.AccessToken, res.RefreshToken)
			return true
		}},
		{"validate", opts.ops, func(r *rand.Rand, _ int) bool {
			_, ok := svc.ValidateAccessToken(ctx, p.get(pick(r)).access)
			return ok
		}},
		{"logout", opts.users, func(_ *rand.Rand, i int) bool {
			svc.Logout(ctx, p.get(i).refresh)
			return true
		}},
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "phase\tops\tfailed\ttotal\tops/s\tp50\tp95\tp99\t")
	for _, ph := range phases {
		s := runPhase(ph.ops, opts.concurrency, ph.op)
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.0f\t%s\t%s\t%s\t\n",
			ph.name, s.ops, s.failures, s.elapsed.Round(time.Millisecond), s.throughput(),
			s.quantile(0.50).Round(time.Microsecond),
			s.quantile(0.95).Round(time.Microsecond),
			s.quantile(0.99).Round(time.Microsecond),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	snap := svc.MetricsSnapshot()
	fmt.Fprintf(out, "counters: login_success=%d refresh_success=%d refresh_reuse=%d logout=%d\n",
		snap.Counters[authcore.MetricLoginSuccess],
		snap.Counters[authcore.MetricRefreshSuccess],
		snap.Counters[authcore.MetricRefreshReuseDetected],
		snap.Counters[authcore.MetricLogout],
	)
	return nil
}

type phaseResult struct {
	elapsed  time.Duration
	ops      int
	failures int64
	sorted   []time.Duration
}

func (r phaseResult) throughput() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.ops) / r.elapsed.Seconds()
}

// quantile uses the nearest-rank method on the sorted samples.
func (r phaseResult) quantile(q float64) time.Duration {
	n := len(r.sorted)
	if n == 0 {
		return 0
	}
	rank := int(q*float64(n) + 0.999999)
	rank = min(max(rank, 1), n)
	return r.sorted[rank-1]
}

// runPhase runs op ops times across workers. Each worker keeps its own
// samples so the hot loop takes no locks.
func runPhase(ops, workers int, op func(r *rand.Rand, i int) bool) phaseResult {
	var (
		next     atomic.Int64
		failures atomic.Int64
		samples  = make([][]time.Duration, workers)
		g        errgroup.Group
	)

	start := time.Now()
	for w := range workers {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(w)))
			for {
				i := int(next.Add(1)) - 1
				if i >= ops {
					return nil
				}
				t0 := time.Now()
				if !op(r, i) {
					failures.Add(1)
				}
				samples[w] = append(samples[w], time.Since(t0))
			}
		})
	}
	_ = g.Wait()

	all := slices.Concat(samples...)
	slices.Sort(all)
	return phaseResult{
		elapsed:  time.Since(start),
		ops:      len(all),
		failures: failures.Load(),
		sorted:   all,
	}
}
