package engine

import "github.com/aditiakhauri/Automobile-Supply-Chain-Management/lifecycle"

// lifecycleEmitter implements lifecycle.Emitter.
type lifecycleEmitter struct {
	bus  *EventBus
	from string
}

func (e *lifecycleEmitter) EmitTransactionSubmitted(o lifecycle.Outcome) {
	e.bus.Emit(Event{Type: EventTransactionSubmitted, Payload: TransactionSubmittedEvent{Outcome: o, From: e.from}})
}

func (e *lifecycleEmitter) EmitTransactionFailed(ref string, t lifecycle.Transition, orderID, stage, detail string) {
	e.bus.Emit(Event{Type: EventTransactionFailed, Payload: TransactionFailedEvent{
		Ref: ref, Transition: t, OrderID: orderID, Stage: stage, Detail: detail,
	}})
}

func (e *lifecycleEmitter) EmitValidationRejected(t lifecycle.Transition, field, detail string) {
	e.bus.Emit(Event{Type: EventValidationRejected, Payload: ValidationRejectedEvent{
		Transition: t, Field: field, Detail: detail,
	}})
}
