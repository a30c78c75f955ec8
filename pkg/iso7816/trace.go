package iso7816

// A Transaction is the atomic unit of ISO 7816-3 communication: one
// command APDU followed by one response APDU. A Trace is the
// chronological sequence of transactions that fulfilled a single
// logical request — more than one when the transport demanded a
// GET RESPONSE (61XX) or a corrected-length retry (6CXX).

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess checks if the transaction ended with a successful status.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is a sequence of transactions representing the full history
// of a logical exchange.
type Trace []Transaction

// Last returns the final transaction of the trace, or nil when the
// trace is empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// Status returns the status word of the final transaction, or
// SW_ERR_UNKNOWN for an empty trace.
func (t Trace) Status() StatusWord {
	last := t.Last()
	if last == nil || last.Response == nil {
		return SW_ERR_UNKNOWN
	}
	return last.Response.Status
}

// Data returns the response data of the final transaction.
func (t Trace) Data() []byte {
	last := t.Last()
	if last == nil || last.Response == nil {
		return nil
	}
	return last.Response.Data
}

// IsSuccess checks if the FINAL transaction in the trace was
// successful, which determines the outcome of the logical operation
// regardless of intermediate 61XX warnings.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}
