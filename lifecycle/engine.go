// Package lifecycle turns validated order transitions into signed,
// nonce-ordered contract transactions.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/chain"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/contract"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/noncelock"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/signer"
)

// Policy holds the fixed transaction parameters.
type Policy struct {
	// DocumentURI is attached to every created order.
	DocumentURI string
	// GasLimit is used for every transition except depositFunds.
	GasLimit uint64
	// DepositGasPrice is the fixed price for depositFunds, in wei.
	DepositGasPrice *big.Int
	// DepositValue is attached to every depositFunds call, in wei.
	DepositValue *big.Int
}

type Engine struct {
	backend  chain.Backend
	signer   *signer.Signer
	contract *contract.Contract
	locker   noncelock.Locker
	emitter  Emitter
	policy   Policy
}

// New builds an Engine. A nil locker gets an in-process one; a nil emitter
// discards events.
func New(backend chain.Backend, s *signer.Signer, c *contract.Contract, locker noncelock.Locker, emitter Emitter, policy Policy) (*Engine, error) {
	if backend == nil || s == nil || c == nil {
		return nil, errors.New("lifecycle: backend, signer and contract are required")
	}
	if policy.DocumentURI == "" {
		return nil, errors.New("lifecycle: document uri is required")
	}
	if policy.GasLimit == 0 {
		return nil, errors.New("lifecycle: gas limit must be positive")
	}
	if policy.DepositGasPrice == nil || policy.DepositValue == nil {
		return nil, errors.New("lifecycle: deposit gas price and value are required")
	}
	if locker == nil {
		locker = noncelock.NewLocal()
	}
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Engine{
		backend:  backend,
		signer:   s,
		contract: c,
		locker:   locker,
		emitter:  emitter,
		policy:   policy,
	}, nil
}

// Account is the signing address.
func (e *Engine) Account() string { return e.signer.Address().Hex() }

func (e *Engine) CreateOrder(ctx context.Context, r CreateOrder) (*Outcome, error) {
	return e.Submit(ctx, r)
}

func (e *Engine) DepositFunds(ctx context.Context, r DepositFunds) (*Outcome, error) {
	return e.Submit(ctx, r)
}

func (e *Engine) MarkShipped(ctx context.Context, r MarkShipped) (*Outcome, error) {
	return e.Submit(ctx, r)
}

func (e *Engine) ConfirmDelivery(ctx context.Context, r ConfirmDelivery) (*Outcome, error) {
	return e.Submit(ctx, r)
}

// Submit validates req, then builds, signs and broadcasts its transaction.
// It returns a *ValidationError before touching the chain, or a
// *ChainSubmissionError for anything that fails afterwards. Nothing is retried.
func (e *Engine) Submit(ctx context.Context, req Request) (*Outcome, error) {
	p, err := req.validate()
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			e.emitter.EmitValidationRejected(req.Transition(), ve.Field, ve.Message)
		}
		return nil, err
	}

	ref := uuid.NewString()
	out, stage, err := e.send(ctx, ref, p)
	if err != nil {
		se := submissionError(p.transition, stage, err)
		log.Printf("lifecycle: %s %s failed at %s: %v", p.transition, ref, stage, err)
		e.emitter.EmitTransactionFailed(ref, p.transition, orderIDString(p), stage, se.Message)
		return nil, se
	}
	log.Printf("lifecycle: %s %s submitted nonce=%d tx=%s", p.transition, ref, out.Nonce, out.TxHash.Hex())
	e.emitter.EmitTransactionSubmitted(*out)
	return out, nil
}

// send runs the nonce-ordered part of a write under the account lock and
// reports the stage that failed.
func (e *Engine) send(ctx context.Context, ref string, p *plan) (*Outcome, string, error) {
	data, err := e.encode(p)
	if err != nil {
		return nil, StageEncode, err
	}

	held, unlock, err := e.locker.Lock(ctx, e.signer.Address())
	if err != nil {
		return nil, StageLock, err
	}
	defer unlock()
	out, stage, err := e.sendLocked(held, ref, p, data)
	if err != nil && errors.Is(context.Cause(held), noncelock.ErrLockLost) {
		return nil, StageLock, fmt.Errorf("%s: %w", stage, noncelock.ErrLockLost)
	}
	return out, stage, err
}

// sendLocked fetches the nonce, prices, signs and submits. ctx is the lock's
// held context.
func (e *Engine) sendLocked(ctx context.Context, ref string, p *plan, data []byte) (*Outcome, string, error) {
	from := e.signer.Address()
	to := e.contract.Address

	nonce, err := e.backend.CurrentNonce(ctx, from)
	if err != nil {
		return nil, StageNonce, err
	}

	var (
		gasLimit uint64
		gasPrice *big.Int
		value    = new(big.Int)
	)
	if p.transition == TransitionDepositFunds {
		value = new(big.Int).Set(e.policy.DepositValue)
		gasPrice = new(big.Int).Set(e.policy.DepositGasPrice)
		gasLimit, err = e.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: data})
	} else {
		gasLimit = e.policy.GasLimit
		gasPrice, err = e.backend.SuggestGasPrice(ctx)
	}
	if err != nil {
		return nil, StageGas, err
	}

	chainID, err := e.backend.ChainID(ctx)
	if err != nil {
		return nil, StageChain, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})
	raw, err := e.signer.Sign(tx, chainID)
	if err != nil {
		return nil, StageSign, err
	}

	if err := context.Cause(ctx); err != nil {
		return nil, StageSubmit, err
	}
	hash, err := e.backend.SubmitSignedTransaction(ctx, raw)
	if err != nil {
		return nil, StageSubmit, err
	}
	return &Outcome{
		Ref:        ref,
		Transition: p.transition,
		OrderID:    orderIDString(p),
		TxHash:     hash,
		Nonce:      nonce,
		GasLimit:   gasLimit,
		GasPrice:   gasPrice,
		Value:      value,
	}, "", nil
}

func (e *Engine) encode(p *plan) ([]byte, error) {
	switch p.transition {
	case TransitionCreateOrder:
		return e.contract.PackCreateOrder(p.supplier, p.amountWei, p.vin, e.policy.DocumentURI)
	case TransitionDepositFunds:
		return e.contract.PackDepositFunds(p.orderID)
	case TransitionMarkShipped:
		return e.contract.PackMarkShipped(p.orderID)
	case TransitionConfirmDelivery:
		return e.contract.PackConfirmDelivery(p.orderID)
	default:
		return nil, fmt.Errorf("unknown transition %q", p.transition)
	}
}

// GetOrder reads an order from the contract. Any id the caller can express
// as a non-negative integer is queried; unknown ids return the contract's
// zero-valued record.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	id, verr := parseOrderID(orderID)
	if verr != nil {
		return nil, verr
	}
	data, err := e.contract.PackOrders(id)
	if err != nil {
		return nil, &ChainQueryError{OrderID: id.String(), Message: err.Error(), Err: err}
	}
	ret, err := e.backend.CallReadOnly(ctx, e.contract.Address, data)
	if err != nil {
		return nil, &ChainQueryError{OrderID: id.String(), Message: err.Error(), Err: err}
	}
	t, err := e.contract.UnpackOrder(ret)
	if err != nil {
		return nil, &ChainQueryError{OrderID: id.String(), Message: err.Error(), Err: err}
	}
	return &Order{
		OrderID:       t.ID,
		Buyer:         t.Buyer.Hex(),
		Supplier:      t.Supplier.Hex(),
		Amount:        json.Number(chain.FromWei(t.Amount)),
		State:         t.State,
		VIN:           t.VIN,
		ISOTS16949Doc: t.ISOTS16949Doc,
		AmountWei:     t.Amount,
	}, nil
}

func orderIDString(p *plan) string {
	if p.orderID == nil {
		return ""
	}
	return p.orderID.String()
}
