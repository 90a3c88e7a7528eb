package protocol

import "time"

// TxSubmitted reports a transaction accepted by the ledger node. Amounts
// are decimal wei strings.
type TxSubmitted struct {
	Ref         string    `json:"ref"`
	Transition  string    `json:"transition"`
	OrderID     string    `json:"order_id,omitempty"`
	TxHash      string    `json:"tx_hash"`
	From        string    `json:"from"`
	Nonce       uint64    `json:"nonce"`
	GasLimit    uint64    `json:"gas_limit"`
	GasPriceWei string    `json:"gas_price_wei"`
	ValueWei    string    `json:"value_wei"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// TxFailed reports a write transition that never reached the ledger, or
// that the node refused.
type TxFailed struct {
	Ref        string    `json:"ref"`
	Transition string    `json:"transition"`
	OrderID    string    `json:"order_id,omitempty"`
	Stage      string    `json:"stage"`
	Detail     string    `json:"detail"`
	FailedAt   time.Time `json:"failed_at"`
}
