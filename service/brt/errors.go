package brt

import (
	"errors"
	"fmt"
)

// Domain errors returned by Client. Callers match them with errors.Is and
// turn them into stable codes with ErrorCode.
var (
	ErrRequestFailed           = errors.New("request failed")
	ErrBlockNotFound           = errors.New("block not found")
	ErrSequenceUndefined       = errors.New("sequence undefined")
	ErrBadSignature            = errors.New("bad signature")
	ErrBadSequence             = errors.New("bad sequence")
	ErrRedundant               = errors.New("redundant transaction")
	ErrUnfundedPayment         = errors.New("unfunded payment")
	ErrTransactionSendFailed   = errors.New("transaction send failed")
	ErrTransactionNotAdaptable = errors.New("transaction not adaptable")
)

// Engine result codes the classifier knows about.
const (
	ResultSuccess          = "tesSUCCESS"
	ResultBadSignature     = "temBAD_SIGNATURE"
	ResultBadAuthMaster    = "tefBAD_AUTH_MASTER"
	ResultPastSequence     = "tefPAST_SEQ"
	ResultRedundant        = "temREDUNDANT"
	ResultUnfundedPayment  = "tecUNFUNDED_PAYMENT"
	engineTransportFailure = "transport_error"
)

// RPCError is an error reported by the node inside an otherwise well formed
// response (status "error").
type RPCError struct {
	Method  string
	Code    string // node error token, e.g. "actNotFound"
	Message string
}

func (e *RPCError) Error() string {
	msg := fmt.Sprintf("rpc %s failed: %s", e.Method, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is makes every RPCError match ErrRequestFailed.
func (e *RPCError) Is(target error) bool {
	return target == ErrRequestFailed
}

// ClassifySubmission maps the outcome of a submit call to a domain error.
// transportErr is the error returned by the gateway, in which case result is
// usually nil. A nil return means the transaction was applied successfully.
func ClassifySubmission(result *SubmitResult, transportErr error) error {
	if transportErr != nil || result == nil || !result.Applied {
		engine := ""
		if result != nil {
			engine = result.EngineResult
		}
		var kind error
		switch engine {
		case ResultBadSignature, ResultBadAuthMaster:
			kind = ErrBadSignature
		case ResultPastSequence:
			kind = ErrBadSequence
		case ResultRedundant:
			kind = ErrRedundant
		default:
			kind = ErrTransactionSendFailed
		}
		if transportErr != nil {
			return fmt.Errorf("%w: %w", kind, transportErr)
		}
		if engine == "" {
			return fmt.Errorf("%w: not applied", kind)
		}
		return fmt.Errorf("%w: %s", kind, engine)
	}

	switch result.EngineResult {
	case ResultSuccess:
		return nil
	case ResultUnfundedPayment:
		return fmt.Errorf("%w: %s", ErrUnfundedPayment, result.EngineResult)
	default:
		return fmt.Errorf("%w: %s", ErrTransactionSendFailed, result.EngineResult)
	}
}

// errorCodes is checked in order, so the most specific kinds come first.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrBadSignature, "e_bad_signature"},
	{ErrBadSequence, "e_bad_sequence"},
	{ErrRedundant, "e_redundant"},
	{ErrUnfundedPayment, "e_unfunded_payment"},
	{ErrTransactionSendFailed, "e_transaction_send_failed"},
	{ErrSequenceUndefined, "e_sequence_undefined"},
	{ErrBlockNotFound, "e_block_not_found"},
	{ErrTransactionNotAdaptable, "e_transaction_not_adaptable"},
}

// ErrorCode returns the stable caller-facing code for err, or "" for nil.
// The set of codes is closed: node error tokens stay on *RPCError and
// surface as "e_request_failed".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "e_request_failed"
}

// ErrorForCode returns the domain error a code stands for, or nil when the
// code does not name one.
func ErrorForCode(code string) error {
	for _, ec := range errorCodes {
		if ec.code == code {
			return ec.err
		}
	}
	if code == "e_request_failed" {
		return ErrRequestFailed
	}
	return nil
}
