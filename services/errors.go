package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for callers deciding how to respond.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindInvalidState
	KindInvariant
	KindValidation
	KindUnexpected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindInvariant:
		return "invariant_violation"
	case KindValidation:
		return "validation"
	default:
		return "unexpected"
	}
}

// Error is the failure type returned by every engine operation.
// Two errors match under errors.Is when their codes are equal, so callers
// compare against the sentinels below.
type Error struct {
	Code    string
	Kind    ErrorKind
	Message string
	Field   string
	Detail  string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Fields renders the error as field → messages for response envelopes.
// Unexpected errors never expose their cause.
func (e *Error) Fields() map[string][]string {
	out := map[string][]string{}
	if e.Field == "" || e.Kind == KindUnexpected {
		return out
	}
	detail := e.Detail
	if detail == "" {
		detail = e.Message
	}
	out[e.Field] = []string{detail}
	return out
}

func (e *Error) with(field, format string, args ...any) *Error {
	cp := *e
	cp.Field = field
	cp.Detail = fmt.Sprintf(format, args...)
	return &cp
}

func (e *Error) wrap(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

var (
	ErrSessionNotFound        = &Error{Code: "session_not_found", Kind: KindNotFound, Message: "table session not found"}
	ErrSourceSessionsNotFound = &Error{Code: "source_sessions_not_found", Kind: KindNotFound, Message: "one or more source sessions not found"}
	ErrInvoiceNotFound        = &Error{Code: "invoice_not_found", Kind: KindNotFound, Message: "invoice not found"}
	ErrTableNotFound          = &Error{Code: "table_not_found", Kind: KindNotFound, Message: "dining table not found"}
	ErrMenuItemNotFound       = &Error{Code: "menu_item_not_found", Kind: KindNotFound, Message: "menu item not found"}
	ErrPromotionNotFound      = &Error{Code: "promotion_not_found", Kind: KindNotFound, Message: "promotion not found"}
	ErrItemNotInSource        = &Error{Code: "item_not_in_source", Kind: KindNotFound, Message: "order item does not belong to the source"}

	ErrTargetNotMergeable    = &Error{Code: "target_not_mergeable", Kind: KindInvalidState, Message: "target session cannot receive a merge"}
	ErrSourceNotMergeable    = &Error{Code: "source_not_mergeable", Kind: KindInvalidState, Message: "source session cannot be merged"}
	ErrInvoiceNotMergeable   = &Error{Code: "invoice_not_mergeable", Kind: KindInvalidState, Message: "invoice cannot be merged"}
	ErrInvoiceNotSplittable  = &Error{Code: "invoice_not_splittable", Kind: KindInvalidState, Message: "invoice cannot be split"}
	ErrSessionNotSplittable  = &Error{Code: "session_not_splittable", Kind: KindInvalidState, Message: "session cannot take part in a split"}
	ErrSessionClosed         = &Error{Code: "session_closed", Kind: KindInvalidState, Message: "session no longer accepts orders"}
	ErrInvoiceNotPayable     = &Error{Code: "invoice_not_payable", Kind: KindInvalidState, Message: "invoice does not accept payments"}
	ErrNotAMergedSession     = &Error{Code: "not_a_merged_session", Kind: KindInvalidState, Message: "session is not a merged session"}
	ErrNoSourceSessionsFound = &Error{Code: "no_source_sessions_found", Kind: KindInvalidState, Message: "merged session has no merged sources"}

	ErrCannotUnmergeHasPayments = &Error{Code: "cannot_unmerge_has_payments", Kind: KindInvariant, Message: "merged invoice already has completed payments"}
	ErrQuantityExceedsAvailable = &Error{Code: "quantity_exceeds_available", Kind: KindInvariant, Message: "transfer quantity exceeds the item quantity"}
	ErrTransferExceedsRemaining = &Error{Code: "transfer_exceeds_remaining", Kind: KindInvariant, Message: "transfer value must stay below the source invoice's remaining amount"}
	ErrSourceWouldBeEmptied     = &Error{Code: "source_would_be_emptied", Kind: KindInvariant, Message: "at least one item must remain in the source session"}
	ErrSplitExceedsTotal        = &Error{Code: "split_exceeds_total", Kind: KindInvariant, Message: "splits must leave part of the invoice unsplit"}
	ErrPromotionAlreadyApplied  = &Error{Code: "promotion_already_applied", Kind: KindInvariant, Message: "promotion already applied to invoice"}

	ErrInvalidRequest = &Error{Code: "invalid_request", Kind: KindValidation, Message: "invalid request"}

	ErrMergeFailed   = &Error{Code: "merge_failed", Kind: KindUnexpected, Message: "could not merge sessions"}
	ErrSplitFailed   = &Error{Code: "split_failed", Kind: KindUnexpected, Message: "could not split"}
	ErrUnmergeFailed = &Error{Code: "unmerge_failed", Kind: KindUnexpected, Message: "could not unmerge session"}
	ErrWriteFailed   = &Error{Code: "write_failed", Kind: KindUnexpected, Message: "could not save changes"}
)

// AsError extracts the *Error carried by err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// classify keeps expected failures as they are and wraps anything else in
// the operation's unexpected error.
func classify(err error, failed *Error) *Error {
	if e, ok := AsError(err); ok {
		return e
	}
	return failed.wrap(err)
}
