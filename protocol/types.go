package protocol

// Message types published on the events topic.
const (
	TypeTxSubmitted = "tx.submitted"
	TypeTxFailed    = "tx.failed"
)

// Roles for Address.Role.
const (
	RoleGateway  = "gateway"
	RoleConsumer = "consumer"
)

// Protocol version.
const Version = 1
