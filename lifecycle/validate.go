package lifecycle

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/chain"
)

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func (r CreateOrder) validate() (*plan, error) {
	supplier := strings.TrimSpace(r.Supplier)
	vin := strings.TrimSpace(r.VIN)
	if supplier == "" {
		return nil, missing("supplier")
	}
	if isZeroOrEmpty(r.Amount) {
		return nil, missing("amount")
	}
	if vin == "" {
		return nil, missing("vin")
	}
	if !common.IsHexAddress(supplier) {
		return nil, invalid("supplier", "invalid supplier address: %s", supplier)
	}
	wei, verr := parseAmount(r.Amount)
	if verr != nil {
		return nil, verr
	}
	return &plan{
		transition: TransitionCreateOrder,
		supplier:   common.HexToAddress(supplier),
		amountWei:  wei,
		vin:        vin,
	}, nil
}

func (r DepositFunds) validate() (*plan, error) {
	if isZeroOrEmpty(r.OrderID) {
		return nil, missing("orderId")
	}
	if isZeroOrEmpty(r.Amount) {
		return nil, missing("amount")
	}
	id, verr := parseOrderID(r.OrderID)
	if verr != nil {
		return nil, verr
	}
	wei, verr := parseAmount(r.Amount)
	if verr != nil {
		return nil, verr
	}
	return &plan{transition: TransitionDepositFunds, orderID: id, amountWei: wei}, nil
}

func (r MarkShipped) validate() (*plan, error) {
	return orderOnly(TransitionMarkShipped, r.OrderID)
}

func (r ConfirmDelivery) validate() (*plan, error) {
	return orderOnly(TransitionConfirmDelivery, r.OrderID)
}

func orderOnly(t Transition, raw string) (*plan, error) {
	if isZeroOrEmpty(raw) {
		return nil, missing("orderId")
	}
	id, verr := parseOrderID(raw)
	if verr != nil {
		return nil, verr
	}
	return &plan{transition: t, orderID: id}, nil
}

// isZeroOrEmpty treats "", "0" and "0.00" as absent: a zero amount or id is
// reported as a missing field.
func isZeroOrEmpty(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true
	}
	s = strings.TrimLeft(s, "+")
	s = strings.Trim(s, "0")
	return s == "" || s == "."
}

func parseOrderID(raw string) (*big.Int, *ValidationError) {
	s := strings.TrimSpace(raw)
	for _, c := range s {
		if c < '0' || c > '9' {
			return nil, invalid("orderId", "invalid orderId: %s", s)
		}
	}
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Cmp(maxUint256) > 0 {
		return nil, invalid("orderId", "invalid orderId: %s", s)
	}
	return id, nil
}

func parseAmount(raw string) (*big.Int, *ValidationError) {
	wei, err := chain.ParseWei(raw)
	switch {
	case errors.Is(err, chain.ErrAmountSyntax):
		return nil, invalid("amount", "invalid amount: %s", strings.TrimSpace(raw))
	case errors.Is(err, chain.ErrAmountNotPositive):
		return nil, invalid("amount", "amount must be positive")
	case err != nil:
		return nil, invalid("amount", "invalid amount: %v", err)
	}
	return wei, nil
}
