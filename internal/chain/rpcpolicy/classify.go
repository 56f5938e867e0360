package rpcpolicy

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/Porostik/dln-dashboard/internal/chain/solana/rpc"
)

type ErrorClass int

const (
	ClassTransient ErrorClass = iota
	ClassTerminal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

type Decision struct {
	Class  ErrorClass
	Reason string
}

func (d Decision) Retryable() bool { return d.Class == ClassTransient }

// Classify decides whether an RPC failure is worth retrying. Network level
// failures and rate limiting are transient; protocol rejections are not.
func Classify(err error) Decision {
	if err == nil {
		return Decision{Class: ClassTerminal, Reason: "no error"}
	}

	if errors.Is(err, context.Canceled) {
		return Decision{Class: ClassTerminal, Reason: "context canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Decision{Class: ClassTransient, Reason: "deadline exceeded"}
	}

	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		return classifyRPCError(rpcErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Decision{Class: ClassTransient, Reason: "network timeout"}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return Decision{Class: ClassTransient, Reason: "connection failure"}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "http status 429"):
		return Decision{Class: ClassTransient, Reason: "rate limited"}
	case strings.Contains(msg, "http status 5"):
		return Decision{Class: ClassTransient, Reason: "server error"}
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "eof"):
		return Decision{Class: ClassTransient, Reason: "network failure"}
	}

	return Decision{Class: ClassTerminal, Reason: "unclassified error"}
}

func classifyRPCError(err *rpc.RPCError) Decision {
	switch err.Code {
	case -32005: // node is behind
		return Decision{Class: ClassTransient, Reason: "node behind"}
	case -32004: // block not available yet
		return Decision{Class: ClassTransient, Reason: "block not available"}
	case -32602, -32600, -32601:
		return Decision{Class: ClassTerminal, Reason: "invalid request"}
	}
	msg := strings.ToLower(err.Message)
	if strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit") {
		return Decision{Class: ClassTransient, Reason: "rate limited"}
	}
	return Decision{Class: ClassTerminal, Reason: "rpc rejection"}
}
