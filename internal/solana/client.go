// Package solana talks to the chain's JSON-RPC endpoint: paced, classified,
// bounded-retry calls, plus reduction of raw transactions into the facts the
// classifier consumes.
package solana

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"solmon/internal/metrics"
)

const (
	// CallDeadline is the hard per-attempt deadline.
	CallDeadline = 20 * time.Second
	// DefaultAttempts bounds tries per logical call.
	DefaultAttempts = 2
	// SignatureLimit is how many recent signatures one poll requests.
	SignatureLimit = 15
)

// Endpoint is the slice of the RPC API the daemon uses, split out so tests
// can stand in for the chain.
type Endpoint interface {
	Signatures(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	Transaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	Balance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
}

// Pacer is the backpressure contract every attempt reports into.
type Pacer interface {
	Acquire(ctx context.Context) error
	OnSuccess()
	OnRateLimit()
	OnNetworkError()
}

type liveEndpoint struct {
	rpc *rpc.Client
}

func (e liveEndpoint) Signatures(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	return e.rpc.GetSignaturesForAddressWithOpts(ctx, account, opts)
}

func (e liveEndpoint) Transaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	return e.rpc.GetTransaction(ctx, sig, opts)
}

func (e liveEndpoint) Balance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return e.rpc.GetBalance(ctx, account, commitment)
}

// Client issues paced RPC calls with classification and bounded retries.
type Client struct {
	endpoint Endpoint
	pacer    Pacer
	log      *slog.Logger
	attempts int
	deadline time.Duration

	sleep func(context.Context, time.Duration) error // test seam
}

// Dial connects a client to an RPC URL.
func Dial(url string, pacer Pacer, log *slog.Logger) *Client {
	return NewClient(liveEndpoint{rpc: rpc.New(url)}, pacer, log)
}

// NewClient wraps an endpoint; tests hand in fakes here.
func NewClient(endpoint Endpoint, pacer Pacer, log *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		pacer:    pacer,
		log:      log,
		attempts: DefaultAttempts,
		deadline: CallDeadline,
		sleep:    sleepContext,
	}
}

// SignatureInfo is one entry of the recent-signatures listing.
type SignatureInfo struct {
	Signature string
	BlockTime time.Time // zero when the node omits it
	Failed    bool
}

// Signatures lists recent signatures for account, newest first.
func (c *Client) Signatures(ctx context.Context, account string, limit int) ([]SignatureInfo, error) {
	key, err := solana.PublicKeyFromBase58(account)
	if err != nil {
		return nil, fmt.Errorf("bad account %q: %w", account, err)
	}
	opts := &rpc.GetSignaturesForAddressOpts{Limit: &limit}

	var raw []*rpc.TransactionSignature
	err = c.withRetry(ctx, "getSignaturesForAddress", func(callCtx context.Context) error {
		var cerr error
		raw, cerr = c.endpoint.Signatures(callCtx, key, opts)
		return cerr
	})
	if err != nil {
		return nil, err
	}

	out := make([]SignatureInfo, 0, len(raw))
	for _, s := range raw {
		if s == nil {
			continue
		}
		info := SignatureInfo{Signature: s.Signature.String(), Failed: s.Err != nil}
		if s.BlockTime != nil {
			info.BlockTime = time.Unix(int64(*s.BlockTime), 0).UTC()
		}
		out = append(out, info)
	}
	return out, nil
}

// Transaction fetches a confirmed transaction and reduces it to facts.
// IsNotFound distinguishes pruned transactions from transport failures.
func (c *Client) Transaction(ctx context.Context, signature string) (TxFacts, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return TxFacts{}, fmt.Errorf("bad signature %q: %w", signature, err)
	}
	maxVersion := uint64(0)
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingJSON,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	}

	var res *rpc.GetTransactionResult
	err = c.withRetry(ctx, "getTransaction", func(callCtx context.Context) error {
		var cerr error
		res, cerr = c.endpoint.Transaction(callCtx, sig, opts)
		return cerr
	})
	if err != nil {
		return TxFacts{}, err
	}
	return reduceTransaction(res)
}

// Balance returns the account's lamports at confirmed commitment.
func (c *Client) Balance(ctx context.Context, account string) (uint64, error) {
	key, err := solana.PublicKeyFromBase58(account)
	if err != nil {
		return 0, fmt.Errorf("bad account %q: %w", account, err)
	}

	var res *rpc.GetBalanceResult
	err = c.withRetry(ctx, "getBalance", func(callCtx context.Context) error {
		var cerr error
		res, cerr = c.endpoint.Balance(callCtx, key, rpc.CommitmentConfirmed)
		return cerr
	})
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, errMalformedResult
	}
	return res.Value, nil
}

// withRetry runs one logical call: acquire the pacer, apply the deadline,
// classify the outcome, report it, and retry retryable classes with
// class-specific backoff.
func (c *Client) withRetry(ctx context.Context, method string, call func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if serr := c.sleep(ctx, retryBackoff(classify(err), attempt-1)); serr != nil {
				return serr
			}
		}
		if aerr := c.pacer.Acquire(ctx); aerr != nil {
			return aerr
		}

		callCtx, cancel := context.WithTimeout(ctx, c.deadline)
		start := time.Now()
		err = call(callCtx)
		cancel()

		class := classify(err)
		metrics.RPCRequests.WithLabelValues(method, class.String()).Inc()
		metrics.RPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		c.report(class)

		if err == nil {
			return nil
		}
		if !class.Retryable() {
			return err
		}
		c.log.Warn("rpc call failed",
			"method", method, "attempt", attempt+1, "class", class.String(), "err", err)
	}
	return err
}

func (c *Client) report(class Class) {
	switch class {
	case ClassRateLimited:
		metrics.RateLimitHits.Inc()
		c.pacer.OnRateLimit()
	case ClassServerTransient, ClassTimeout, ClassNetwork:
		c.pacer.OnNetworkError()
	default:
		// The transport behaved; only the payload was unusable.
		c.pacer.OnSuccess()
	}
}

// retryBackoff picks the wait before the next try. attempt is the zero-based
// index of the try that just failed. Rate limiting waits longest; transient
// server errors and transport failures back off exponentially with lower
// caps.
func retryBackoff(class Class, attempt int) time.Duration {
	switch class {
	case ClassRateLimited:
		return min(time.Duration(5*(attempt+1))*time.Second, 30*time.Second)
	case ClassServerTransient:
		return min(time.Duration(1<<attempt)*time.Second, 15*time.Second)
	default:
		return min(time.Duration(1<<attempt)*time.Second, 10*time.Second)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
