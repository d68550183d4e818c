package query

import "fmt"

// Kind classifies a query-layer failure.
type Kind string

const (
	KindUnboundVariable Kind = "UnboundVariableError"
	KindTypeConversion  Kind = "TypeConversion"
	KindAssignment      Kind = "AssignmentError"
	KindFactStore       Kind = "FactStore"
	KindEmptySelector   Kind = "EmptySelector"
)

// Error is a typed query-evaluation error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("query: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("query: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func unboundVariable(name string) error {
	return &Error{Kind: KindUnboundVariable, Message: fmt.Sprintf("variable %q is unbound", name)}
}

func assignmentError(name string) error {
	return &Error{Kind: KindAssignment, Message: fmt.Sprintf("variable %q bound to inconsistent values", name)}
}

func factStoreError(cause error) error {
	return &Error{Kind: KindFactStore, Message: "fact store failure", Cause: cause}
}

func emptySelector() error {
	return &Error{Kind: KindEmptySelector, Message: "application has no constrainable position"}
}
