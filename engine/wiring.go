package engine

import (
	"fmt"

	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/messaging"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/protocol"
	"github.com/aditiakhauri/Automobile-Supply-Chain-Management/store"
)

func (e *Engine) wireEventHandlers() {
	// Submitted transactions: journal, audit, publish
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TransactionSubmittedEvent)
		o := ev.Outcome
		tx := &store.Transaction{
			Ref:        o.Ref,
			Transition: string(o.Transition),
			OrderID:    o.OrderID,
			Status:     store.TxStatusSubmitted,
			TxHash:     o.TxHash.Hex(),
			From:       ev.From,
			Nonce:      o.Nonce,
			GasLimit:   o.GasLimit,
			GasPrice:   o.GasPrice.String(),
			ValueWei:   o.Value.String(),
		}
		if err := e.db.RecordTransaction(tx); err != nil {
			e.logFn("engine: journal %s: %v", o.Ref, err)
		}
		e.db.AppendAudit("transaction", o.Ref, "submitted", "", fmt.Sprintf("%s order=%s tx=%s nonce=%d", o.Transition, o.OrderID, tx.TxHash, o.Nonce), "system")

		e.enqueueEvent(protocol.TypeTxSubmitted, o.Ref, o.OrderID, &protocol.TxSubmitted{
			Ref:         o.Ref,
			Transition:  string(o.Transition),
			OrderID:     o.OrderID,
			TxHash:      tx.TxHash,
			From:        ev.From,
			Nonce:       o.Nonce,
			GasLimit:    o.GasLimit,
			GasPriceWei: tx.GasPrice,
			ValueWei:    tx.ValueWei,
			SubmittedAt: evt.Timestamp.UTC(),
		})
	}, EventTransactionSubmitted)

	// Failed transactions: journal, audit, publish
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(TransactionFailedEvent)
		e.logFn("engine: %s %s failed at %s: %s", ev.Transition, ev.Ref, ev.Stage, ev.Detail)
		tx := &store.Transaction{
			Ref:         ev.Ref,
			Transition:  string(ev.Transition),
			OrderID:     ev.OrderID,
			Status:      store.TxStatusFailed,
			Stage:       ev.Stage,
			ErrorDetail: ev.Detail,
		}
		if err := e.db.RecordTransaction(tx); err != nil {
			e.logFn("engine: journal %s: %v", ev.Ref, err)
		}
		e.db.AppendAudit("transaction", ev.Ref, "failed", "", ev.Detail, "system")

		e.enqueueEvent(protocol.TypeTxFailed, ev.Ref, ev.OrderID, &protocol.TxFailed{
			Ref:        ev.Ref,
			Transition: string(ev.Transition),
			OrderID:    ev.OrderID,
			Stage:      ev.Stage,
			Detail:     ev.Detail,
			FailedAt:   evt.Timestamp.UTC(),
		})
	}, EventTransactionFailed)

	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ValidationRejectedEvent)
		e.logFn("engine: %s rejected: %s (%s)", ev.Transition, ev.Detail, ev.Field)
	}, EventValidationRejected)

	// Connection changes: audit
	e.Events.SubscribeTypes(func(evt Event) {
		ev := evt.Payload.(ConnectionEvent)
		e.logFn("engine: %s: %s", evt.Type, ev.Detail)
		e.db.AppendAudit("connection", "", evt.Type.String(), "", ev.Detail, "system")
	}, EventChainConnected, EventChainDisconnected, EventMessagingConnected, EventMessagingDisconnected)
}

// enqueueEvent writes an envelope to the outbox for the drainer to publish.
// Messages are keyed by order id so one order's events stay ordered.
func (e *Engine) enqueueEvent(msgType, ref, orderID string, payload any) {
	if e.msgClient.Backend() == messaging.BackendNone {
		return
	}
	src := protocol.Address{Role: protocol.RoleGateway, Gateway: e.cfg.Messaging.GatewayID}
	dst := protocol.Address{Role: protocol.RoleConsumer}
	env, err := protocol.NewCorrelated(msgType, src, dst, ref, payload)
	if err != nil {
		e.logFn("engine: build %s envelope: %v", msgType, err)
		return
	}
	data, err := env.Encode()
	if err != nil {
		e.logFn("engine: encode %s envelope: %v", msgType, err)
		return
	}
	if err := e.db.EnqueueOutbox(e.cfg.Messaging.EventsTopic, data, msgType, orderID); err != nil {
		e.logFn("engine: enqueue %s: %v", msgType, err)
	}
}
