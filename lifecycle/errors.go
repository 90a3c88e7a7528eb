package lifecycle

import "fmt"

// MsgMissingFields is reported when a required field is absent or zero.
const MsgMissingFields = "Missing required fields"

// ValidationError is a malformed or missing request field. No chain call
// is made once one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func missing(field string) *ValidationError {
	return &ValidationError{Field: field, Message: MsgMissingFields}
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Submission stages, in order.
const (
	StageEncode = "encode"
	StageLock   = "lock"
	StageNonce  = "nonce"
	StageGas    = "gas"
	StageChain  = "chain_id"
	StageSign   = "sign"
	StageSubmit = "submit"
)

// ChainSubmissionError is any failure between building and broadcasting a
// write transaction. Message is the underlying error text, unchanged.
type ChainSubmissionError struct {
	Transition Transition
	Stage      string
	Message    string
	Err        error
}

func (e *ChainSubmissionError) Error() string { return e.Message }
func (e *ChainSubmissionError) Unwrap() error { return e.Err }

func submissionError(t Transition, stage string, err error) *ChainSubmissionError {
	return &ChainSubmissionError{Transition: t, Stage: stage, Message: err.Error(), Err: err}
}

// ChainQueryError is a failed order read.
type ChainQueryError struct {
	OrderID string
	Message string
	Err     error
}

func (e *ChainQueryError) Error() string { return e.Message }
func (e *ChainQueryError) Unwrap() error { return e.Err }
