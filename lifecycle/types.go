package lifecycle

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Transition names a contract lifecycle function.
type Transition string

const (
	TransitionCreateOrder     Transition = "createOrder"
	TransitionDepositFunds    Transition = "depositFunds"
	TransitionMarkShipped     Transition = "markShipped"
	TransitionConfirmDelivery Transition = "confirmDelivery"
)

// Transitions lists every write transition in lifecycle order.
var Transitions = []Transition{
	TransitionCreateOrder,
	TransitionDepositFunds,
	TransitionMarkShipped,
	TransitionConfirmDelivery,
}

func (t Transition) Valid() bool {
	for _, v := range Transitions {
		if t == v {
			return true
		}
	}
	return false
}

// Request is one inbound write transition. Fields hold the caller's raw
// text; nothing is trusted until validate builds a plan.
type Request interface {
	Transition() Transition
	validate() (*plan, error)
}

// CreateOrder registers a new order with a supplier. Amount is in ether.
type CreateOrder struct {
	Supplier string
	Amount   string
	VIN      string
}

// DepositFunds escrows funds for an order. Amount is in ether and is only
// validated; the value attached on-chain is the configured deposit value.
type DepositFunds struct {
	OrderID string
	Amount  string
}

type MarkShipped struct {
	OrderID string
}

type ConfirmDelivery struct {
	OrderID string
}

func (CreateOrder) Transition() Transition     { return TransitionCreateOrder }
func (DepositFunds) Transition() Transition    { return TransitionDepositFunds }
func (MarkShipped) Transition() Transition     { return TransitionMarkShipped }
func (ConfirmDelivery) Transition() Transition { return TransitionConfirmDelivery }

// plan is a validated request, ready to encode.
type plan struct {
	transition Transition
	orderID    *big.Int // nil for createOrder
	supplier   common.Address
	amountWei  *big.Int
	vin        string
}

// Outcome describes a transaction accepted by the node.
type Outcome struct {
	Ref        string
	Transition Transition
	OrderID    string
	TxHash     common.Hash
	Nonce      uint64
	GasLimit   uint64
	GasPrice   *big.Int
	Value      *big.Int
}

// Order is a snapshot of an on-chain order, shaped for display.
type Order struct {
	OrderID       *big.Int    `json:"orderId"`
	Buyer         string      `json:"buyer"`
	Supplier      string      `json:"supplier"`
	Amount        json.Number `json:"amount"`
	State         uint64      `json:"state"`
	VIN           string      `json:"vin"`
	ISOTS16949Doc string      `json:"isoTs16949Doc"`

	AmountWei *big.Int `json:"-"`
}
