package netconf

import (
	"encoding/xml"
	"fmt"
	"io"
)

// ErrorTag is the symbolic NETCONF error classification carried inside an
// error reply.
type ErrorTag string

const (
	TagAccessDenied          ErrorTag = "access-denied"
	TagInvalidValue          ErrorTag = "invalid-value"
	TagOperationFailed       ErrorTag = "operation-failed"
	TagOperationNotSupported ErrorTag = "operation-not-supported"
)

// ErrorType distinguishes which conceptual layer raised the error.
type ErrorType string

const (
	ErrorTypeProtocol    ErrorType = "protocol"
	ErrorTypeApplication ErrorType = "application"
)

// RPCError is one structured error entry of an error reply. It satisfies
// the error interface so operation internals can pass it through ordinary
// error returns before it is shaped into a Reply.
type RPCError struct {
	Type     ErrorType
	Tag      ErrorTag
	Severity string
	Message  string
}

// NewError builds an application-level RPCError with severity "error".
func NewError(tag ErrorTag, message string) *RPCError {
	return &RPCError{
		Type:     ErrorTypeApplication,
		Tag:      tag,
		Severity: "error",
		Message:  message,
	}
}

// Errorf builds an application-level RPCError from a format string.
func Errorf(tag ErrorTag, format string, args ...any) *RPCError {
	return NewError(tag, fmt.Sprintf(format, args...))
}

func (e *RPCError) Error() string {
	if e == nil {
		return "netconf: <nil> rpc error"
	}
	return fmt.Sprintf("%s: %s", e.Tag, e.Message)
}

// Reply is the single terminal result of one RPC invocation: either an OK
// acknowledgement or a non-empty list of RPCErrors, never both.
type Reply struct {
	ok     bool
	errors []*RPCError
}

// OK returns the success acknowledgement reply.
func OK() *Reply {
	return &Reply{ok: true}
}

// ErrorReply wraps one or more RPCErrors into an error reply. Nil entries
// are dropped; at least one non-nil error is required by convention.
func ErrorReply(errs ...*RPCError) *Reply {
	r := &Reply{}
	for _, e := range errs {
		if e != nil {
			r.errors = append(r.errors, e)
		}
	}
	return r
}

// IsOK reports whether the reply is the success acknowledgement.
func (r *Reply) IsOK() bool {
	return r != nil && r.ok
}

// Errors returns the structured error list of an error reply.
func (r *Reply) Errors() []*RPCError {
	if r == nil {
		return nil
	}
	return r.errors
}

// AddError appends another error entry, used when a follow-up failure
// needs to ride along with the error that triggered it.
func (r *Reply) AddError(e *RPCError) {
	if r == nil || e == nil {
		return
	}
	r.ok = false
	r.errors = append(r.errors, e)
}

type xmlRPCError struct {
	XMLName  xml.Name `xml:"rpc-error"`
	Type     string   `xml:"error-type"`
	Tag      string   `xml:"error-tag"`
	Severity string   `xml:"error-severity"`
	Message  string   `xml:"error-message"`
}

type xmlReply struct {
	XMLName xml.Name      `xml:"rpc-reply"`
	OK      *struct{}     `xml:"ok,omitempty"`
	Errors  []xmlRPCError `xml:"rpc-error,omitempty"`
}

// Encode writes the reply envelope as XML.
func (r *Reply) Encode(w io.Writer) error {
	if r == nil {
		return fmt.Errorf("netconf: encode nil reply")
	}
	out := xmlReply{}
	if r.ok {
		out.OK = &struct{}{}
	}
	for _, e := range r.errors {
		out.Errors = append(out.Errors, xmlRPCError{
			Type:     string(e.Type),
			Tag:      string(e.Tag),
			Severity: e.Severity,
			Message:  e.Message,
		})
	}
	enc := xml.NewEncoder(w)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("netconf: encode reply: %w", err)
	}
	return enc.Close()
}
