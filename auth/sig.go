package auth

import (
	"context"
	"crypto/ed25519"
	"errors"

	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/internal/codec"
)

// wireInvocationEnvelope is the signed payload: every Invocation field
// except the signature itself, in fixed order.
type wireInvocationEnvelope struct {
	_          struct{} `cbor:",toarray"`
	Issuer     string
	Audience   string
	Subject    wireSubject
	Command    []string
	Arguments  map[string]any
	Proofs     [][blake3hash.Size]byte
	Cause      *[blake3hash.Size]byte
	IssuedAt   *uint64
	Expiration *uint64
	Meta       map[string]any
	Nonce      []byte
}

func (inv Invocation) envelope() wireInvocationEnvelope {
	proofs := make([][blake3hash.Size]byte, len(inv.Proofs))
	for i, p := range inv.Proofs {
		proofs[i] = p
	}
	var cause *[blake3hash.Size]byte
	if inv.Cause != nil {
		c := [blake3hash.Size]byte(*inv.Cause)
		cause = &c
	}
	return wireInvocationEnvelope{
		Issuer: inv.Issuer, Audience: inv.Audience, Subject: inv.Subject.toWire(),
		Command: []string(inv.Command), Arguments: inv.Arguments, Proofs: proofs,
		Cause: cause, IssuedAt: inv.IssuedAt, Expiration: inv.Expiration,
		Meta: inv.Meta, Nonce: inv.Nonce,
	}
}

// toInvocation reverses envelope(), reconstructing the invocation minus
// its signature (the envelope is the signed payload, so the signature
// lives outside it).
func (w wireInvocationEnvelope) toInvocation() Invocation {
	proofs := make([]blake3hash.Hash, len(w.Proofs))
	for i, p := range w.Proofs {
		proofs[i] = p
	}
	var cause *blake3hash.Hash
	if w.Cause != nil {
		c := blake3hash.Hash(*w.Cause)
		cause = &c
	}
	return Invocation{
		Issuer: w.Issuer, Audience: w.Audience, Subject: w.Subject.toSubject(),
		Command: Command(w.Command), Arguments: w.Arguments, Proofs: proofs,
		Cause: cause, IssuedAt: w.IssuedAt, Expiration: w.Expiration,
		Meta: w.Meta, Nonce: w.Nonce,
	}
}

// SigningPayload returns the canonical bytes an issuer signs to produce
// inv.Signature.
func (inv Invocation) SigningPayload() ([]byte, error) {
	return codec.Marshal(inv.envelope())
}

// KeyResolver resolves an issuer DID to its Ed25519 verification key.
type KeyResolver interface {
	ResolveKey(ctx context.Context, did string) (ed25519.PublicKey, error)
}

// StaticKeyResolver resolves a fixed set of DID→key bindings, for tests
// and single-tenant deployments that don't need network DID resolution.
type StaticKeyResolver map[string]ed25519.PublicKey

func (r StaticKeyResolver) ResolveKey(_ context.Context, did string) (ed25519.PublicKey, error) {
	key, ok := r[did]
	if !ok {
		return nil, errors.New("auth: no key registered for DID " + did)
	}
	return key, nil
}

// verifySignature checks inv's signature against its issuer's resolved
// key, failing closed on any resolution or verification error.
func verifySignature(ctx context.Context, inv Invocation, resolver KeyResolver) error {
	key, err := resolver.ResolveKey(ctx, inv.Issuer)
	if err != nil {
		return signatureInvalid(err)
	}
	payload, err := inv.SigningPayload()
	if err != nil {
		return signatureInvalid(err)
	}
	if !ed25519.Verify(key, payload, inv.Signature) {
		return signatureInvalid(errors.New("signature mismatch"))
	}
	return nil
}
