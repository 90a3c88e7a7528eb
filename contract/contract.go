// Package contract encodes calls to, and decodes results from, the deployed
// AutomobileSupplyChain contract using its ABI artifact.
package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract method names.
const (
	MethodCreateOrder     = "createOrder"
	MethodDepositFunds    = "depositFunds"
	MethodMarkShipped     = "markShipped"
	MethodConfirmDelivery = "confirmDelivery"
	MethodOrders          = "orders"
)

var requiredMethods = []string{
	MethodCreateOrder,
	MethodDepositFunds,
	MethodMarkShipped,
	MethodConfirmDelivery,
	MethodOrders,
}

// LoadABI reads an ABI artifact from disk. See ParseABI for accepted shapes.
func LoadABI(path string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("read abi %s: %w", path, err)
	}
	parsed, err := ParseABI(data)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%s: %w", path, err)
	}
	return parsed, nil
}

// ParseABI accepts either a bare descriptor array or a build artifact object
// carrying the descriptors under "abi".
func ParseABI(data []byte) (abi.ABI, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return abi.ABI{}, errors.New("empty abi")
	}
	if trimmed[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return abi.ABI{}, fmt.Errorf("parse abi artifact: %w", err)
		}
		if len(artifact.ABI) == 0 {
			return abi.ABI{}, errors.New("abi artifact has no abi field")
		}
		trimmed = artifact.ABI
	}
	parsed, err := abi.JSON(bytes.NewReader(trimmed))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	return parsed, nil
}

// Contract binds a deployed address to its ABI.
type Contract struct {
	Address common.Address
	abi     abi.ABI
}

func New(address common.Address, parsed abi.ABI) *Contract {
	return &Contract{Address: address, abi: parsed}
}

// Validate checks that every lifecycle method the gateway calls is present.
func (c *Contract) Validate() error {
	var errs []error
	for _, name := range requiredMethods {
		if _, ok := c.abi.Methods[name]; !ok {
			errs = append(errs, fmt.Errorf("abi: missing method %s", name))
		}
	}
	return errors.Join(errs...)
}

func (c *Contract) PackCreateOrder(supplier common.Address, amountWei *big.Int, vin, documentURI string) ([]byte, error) {
	return c.pack(MethodCreateOrder, supplier, amountWei, vin, documentURI)
}

func (c *Contract) PackDepositFunds(orderID *big.Int) ([]byte, error) {
	return c.pack(MethodDepositFunds, orderID)
}

func (c *Contract) PackMarkShipped(orderID *big.Int) ([]byte, error) {
	return c.pack(MethodMarkShipped, orderID)
}

func (c *Contract) PackConfirmDelivery(orderID *big.Int) ([]byte, error) {
	return c.pack(MethodConfirmDelivery, orderID)
}

func (c *Contract) PackOrders(orderID *big.Int) ([]byte, error) {
	return c.pack(MethodOrders, orderID)
}

func (c *Contract) pack(method string, args ...any) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// OrderTuple is the raw result of orders(uint256), amount in wei.
type OrderTuple struct {
	ID            *big.Int
	Buyer         common.Address
	Supplier      common.Address
	Amount        *big.Int
	State         uint64
	VIN           string
	ISOTS16949Doc string
}

// UnpackOrder decodes the return data of orders(uint256).
func (c *Contract) UnpackOrder(data []byte) (*OrderTuple, error) {
	if len(data) == 0 {
		// empty return data means no code at the address
		return nil, errors.New("unpack orders: empty return data")
	}
	vals, err := c.abi.Unpack(MethodOrders, data)
	if err != nil {
		return nil, fmt.Errorf("unpack orders: %w", err)
	}
	if len(vals) != 7 {
		return nil, fmt.Errorf("unpack orders: got %d values, want 7", len(vals))
	}

	var (
		o  OrderTuple
		ok bool
	)
	if o.ID, ok = toBig(vals[0]); !ok {
		return nil, fmt.Errorf("unpack orders: id has type %T", vals[0])
	}
	if o.Buyer, ok = vals[1].(common.Address); !ok {
		return nil, fmt.Errorf("unpack orders: buyer has type %T", vals[1])
	}
	if o.Supplier, ok = vals[2].(common.Address); !ok {
		return nil, fmt.Errorf("unpack orders: supplier has type %T", vals[2])
	}
	if o.Amount, ok = toBig(vals[3]); !ok {
		return nil, fmt.Errorf("unpack orders: amount has type %T", vals[3])
	}
	state, ok := toBig(vals[4])
	if !ok || !state.IsUint64() {
		return nil, fmt.Errorf("unpack orders: state has type %T", vals[4])
	}
	o.State = state.Uint64()
	if o.VIN, ok = vals[5].(string); !ok {
		return nil, fmt.Errorf("unpack orders: vin has type %T", vals[5])
	}
	if o.ISOTS16949Doc, ok = vals[6].(string); !ok {
		return nil, fmt.Errorf("unpack orders: document has type %T", vals[6])
	}
	return &o, nil
}

// toBig normalizes the integer types go-ethereum produces for uintN fields.
func toBig(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case *big.Int:
		return n, n != nil
	case uint8:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(n)), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	default:
		return nil, false
	}
}
