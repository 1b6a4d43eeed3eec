package solana

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// Class partitions call failures by how the pacer and retry loop react.
type Class uint8

const (
	ClassNone            Class = iota // no error
	ClassRateLimited                  // HTTP 429
	ClassServerTransient              // HTTP 5xx
	ClassTimeout                      // deadline exceeded
	ClassNetwork                      // transport failure
	ClassOther                        // not retryable
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "ok"
	case ClassRateLimited:
		return "rate_limited"
	case ClassServerTransient:
		return "server_transient"
	case ClassTimeout:
		return "timeout"
	case ClassNetwork:
		return "network"
	default:
		return "other"
	}
}

// Retryable reports whether another attempt can plausibly succeed.
func (c Class) Retryable() bool {
	switch c {
	case ClassRateLimited, ClassServerTransient, ClassTimeout, ClassNetwork:
		return true
	default:
		return false
	}
}

// classify maps an RPC call error to its class. Status codes are preferred;
// endpoints that wrap 429s in opaque errors are caught by substring, the
// same way most clients of public mainnet endpoints end up doing it.
func classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Code == http.StatusTooManyRequests:
			return ClassRateLimited
		case httpErr.Code >= 500:
			return ClassServerTransient
		default:
			return ClassOther
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests"):
		return ClassRateLimited
	case strings.Contains(msg, "502") || strings.Contains(msg, "503") ||
		strings.Contains(msg, "bad gateway") || strings.Contains(msg, "service unavailable"):
		return ClassServerTransient
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") || strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "eof"):
		return ClassNetwork
	default:
		return ClassOther
	}
}

// IsNotFound reports whether the endpoint answered that the value does not
// exist (a pruned or unconfirmed transaction, not a transport problem).
func IsNotFound(err error) bool {
	return errors.Is(err, rpc.ErrNotFound)
}
