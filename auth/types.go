package auth

import (
	"strings"

	"github.com/dialog-db/dialog/internal/blake3hash"
)

// Subject is a capability chain's root authority: a specific DID, or the
// powerline `Any`, which inherits its subject from context.
type Subject struct {
	any bool
	did string
}

// SpecificSubject builds a Subject naming exactly did.
func SpecificSubject(did string) Subject { return Subject{did: did} }

// AnySubject is the powerline subject.
var AnySubject = Subject{any: true}

// IsAny reports whether s is the powerline subject.
func (s Subject) IsAny() bool { return s.any }

// DID returns s's DID; only meaningful if !IsAny().
func (s Subject) DID() string { return s.did }

// Command is a capability path, e.g. "/storage/read" parsed into
// ["storage", "read"]. The empty command is the root, matching everything.
type Command []string

// ParseCommand splits a "/"-separated command path.
func ParseCommand(s string) Command {
	trimmed := strings.Trim(s, "/")
	if trimmed == "" {
		return nil
	}
	return Command(strings.Split(trimmed, "/"))
}

func (c Command) String() string {
	if len(c) == 0 {
		return "/"
	}
	return "/" + strings.Join(c, "/")
}

// StartsWith reports whether c is at least as specific as prefix: every
// segment of prefix matches the corresponding segment of c.
func (c Command) StartsWith(prefix Command) bool {
	if len(prefix) > len(c) {
		return false
	}
	for i, seg := range prefix {
		if c[i] != seg {
			return false
		}
	}
	return true
}

// TimeRange is a validity window with both bounds inclusive; a nil bound
// is unbounded on that side.
type TimeRange struct {
	NotBefore  *uint64
	Expiration *uint64
}

// Intersect narrows t to the overlap with o: the later not-before, the
// earlier expiration.
func (t TimeRange) Intersect(o TimeRange) TimeRange {
	return TimeRange{NotBefore: maxBound(t.NotBefore, o.NotBefore), Expiration: minBound(t.Expiration, o.Expiration)}
}

// Empty reports whether the window is inverted (nbf > exp), meaning no
// instant satisfies it.
func (t TimeRange) Empty() bool {
	if t.NotBefore == nil || t.Expiration == nil {
		return false
	}
	return *t.NotBefore > *t.Expiration
}

func maxBound(a, b *uint64) *uint64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *a > *b {
		return a
	}
	return b
}

func minBound(a, b *uint64) *uint64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *a < *b {
		return a
	}
	return b
}

// Delegation grants command (attenuated by policy) on subject to audience.
type Delegation struct {
	Issuer     string
	Audience   string
	Subject    Subject
	Command    Command
	Policy     Policy
	NotBefore  *uint64
	Expiration *uint64
	Meta       map[string]any
	Nonce      []byte
}

// Invocation requests that command be performed on subject's behalf,
// authorized by a chain of proofs.
type Invocation struct {
	Issuer     string
	Audience   string // empty if absent
	Subject    Subject
	Command    Command
	Arguments  map[string]any
	Proofs     []blake3hash.Hash
	Cause      *blake3hash.Hash
	IssuedAt   *uint64
	Expiration *uint64
	Meta       map[string]any
	Nonce      []byte
	Signature  []byte
}
