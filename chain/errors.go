package chain

import (
	"context"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

type Kind int

const (
	// KindConnectivity covers dial failures, transport errors and timeouts.
	KindConnectivity Kind = iota + 1
	// KindRejected means the node answered and refused the request.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Fault is a failed node interaction. Error() is the node's message, unchanged.
type Fault struct {
	Op   string
	Kind Kind
	Err  error
}

func (f *Fault) Error() string { return f.Err.Error() }
func (f *Fault) Unwrap() error { return f.Err }

// rejectionMarkers are txpool and EVM messages that mean the node refused the
// transaction even when they arrive without a JSON-RPC error code.
var rejectionMarkers = []string{
	"nonce too low",
	"nonce too high",
	"insufficient funds",
	"execution reverted",
	"replacement transaction underpriced",
	"transaction underpriced",
	"already known",
	"intrinsic gas too low",
	"exceeds block gas limit",
	"max fee per gas less than block base fee",
	"invalid sender",
}

// classify wraps err in a *Fault. A nil err stays nil.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	return &Fault{Op: op, Kind: kindOf(err), Err: err}
}

func kindOf(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindConnectivity
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return KindRejected
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rejectionMarkers {
		if strings.Contains(msg, m) {
			return KindRejected
		}
	}
	return KindConnectivity
}

// IsRejected reports whether err is a node-side refusal.
func IsRejected(err error) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == KindRejected
}

// IsConnectivity reports whether err is a transport-level failure.
func IsConnectivity(err error) bool {
	var f *Fault
	return errors.As(err, &f) && f.Kind == KindConnectivity
}
