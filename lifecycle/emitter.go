package lifecycle

// Emitter is the interface adapters must satisfy to bridge transition events to the engine.
type Emitter interface {
	EmitTransactionSubmitted(o Outcome)
	EmitTransactionFailed(ref string, t Transition, orderID, stage, detail string)
	EmitValidationRejected(t Transition, field, detail string)
}

type nopEmitter struct{}

func (nopEmitter) EmitTransactionSubmitted(Outcome)                                 {}
func (nopEmitter) EmitTransactionFailed(string, Transition, string, string, string) {}
func (nopEmitter) EmitValidationRejected(Transition, string, string)                {}
