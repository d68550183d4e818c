package tree

import (
	"fmt"

	"github.com/dialog-db/dialog/internal/blake3hash"
)

// Kind classifies a tree failure.
type Kind string

const (
	// KindMissingBlock means storage lost a referenced hash.
	KindMissingBlock Kind = "MissingBlock"
	// KindIncorrectTreeAccess means a segment was treated as a branch, or
	// vice versa.
	KindIncorrectTreeAccess Kind = "IncorrectTreeAccess"
	// KindInvalidConstruction means a node was built with an empty child
	// list.
	KindInvalidConstruction Kind = "InvalidConstruction"
	// KindUnexpectedTreeShape means an invariant was violated (e.g. maximum
	// depth exceeded, unsorted children).
	KindUnexpectedTreeShape Kind = "UnexpectedTreeShape"
	// KindStorage means the backing blob store failed or is unreachable.
	KindStorage Kind = "Storage"
)

// Error is the tree engine's error type. All tree failures are fatal to the
// current operation; none corrupt prior snapshots.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func missingBlock(hash blake3hash.Hash) error {
	return &Error{Kind: KindMissingBlock, Message: fmt.Sprintf("block #%s not found", hash.ShortString())}
}

func incorrectTreeAccess(message string) error {
	return &Error{Kind: KindIncorrectTreeAccess, Message: message}
}

func invalidConstruction(message string) error {
	return &Error{Kind: KindInvalidConstruction, Message: message}
}

func unexpectedTreeShape(message string) error {
	return &Error{Kind: KindUnexpectedTreeShape, Message: message}
}

func storageFailure(cause error) error {
	return &Error{Kind: KindStorage, Message: "storage backend failed", Cause: cause}
}
