package engine

import "github.com/aditiakhauri/Automobile-Supply-Chain-Management/lifecycle"

const (
	EventTransactionSubmitted EventType = iota + 1
	EventTransactionFailed
	EventValidationRejected
	EventChainConnected
	EventChainDisconnected
	EventMessagingConnected
	EventMessagingDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventTransactionSubmitted:
		return "transaction-submitted"
	case EventTransactionFailed:
		return "transaction-failed"
	case EventValidationRejected:
		return "validation-rejected"
	case EventChainConnected:
		return "chain-connected"
	case EventChainDisconnected:
		return "chain-disconnected"
	case EventMessagingConnected:
		return "messaging-connected"
	case EventMessagingDisconnected:
		return "messaging-disconnected"
	default:
		return "unknown"
	}
}

// --- Event payloads ---

type TransactionSubmittedEvent struct {
	Outcome lifecycle.Outcome
	From    string
}

type TransactionFailedEvent struct {
	Ref        string
	Transition lifecycle.Transition
	OrderID    string
	Stage      string
	Detail     string
}

type ValidationRejectedEvent struct {
	Transition lifecycle.Transition
	Field      string
	Detail     string
}

type ConnectionEvent struct {
	Detail string
}
