package auth_test

import (
	"context"
	"crypto/ed25519"
	cryptorand "crypto/rand"
	"testing"

	"github.com/dialog-db/dialog/auth"
	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keypair struct {
	did  string
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func newKeypair(t *testing.T, did string) keypair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(cryptorand.Reader)
	require.NoError(t, err)
	return keypair{did: did, pub: pub, priv: priv}
}

func sign(t *testing.T, kp keypair, inv auth.Invocation) auth.Invocation {
	t.Helper()
	payload, err := inv.SigningPayload()
	require.NoError(t, err)
	inv.Signature = ed25519.Sign(kp.priv, payload)
	return inv
}

// A delegation subject=A audience=B command=/storage/read authorizes an
// invocation by B with subject=A and command=/storage/read.
func TestChainSimpleDelegationSucceeds(t *testing.T) {
	ctx := context.Background()
	a := newKeypair(t, "did:key:a")
	b := newKeypair(t, "did:key:b")

	delegation := auth.Delegation{
		Issuer: a.did, Audience: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/read"),
	}
	cid, err := delegation.CID()
	require.NoError(t, err)

	inv := sign(t, b, auth.Invocation{
		Issuer: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/read"), Arguments: map[string]any{},
		Proofs: []blake3hash.Hash{cid},
	})

	store, err := auth.NewMemoryProofStore(delegation)
	require.NoError(t, err)
	resolver := auth.StaticKeyResolver{a.did: a.pub, b.did: b.pub}

	_, err = auth.Check(ctx, inv, store, resolver)
	assert.NoError(t, err)
}

// An invocation escalating to /storage/write exceeds a /storage/read proof.
func TestChainCommandEscalationFails(t *testing.T) {
	ctx := context.Background()
	a := newKeypair(t, "did:key:a")
	b := newKeypair(t, "did:key:b")

	delegation := auth.Delegation{
		Issuer: a.did, Audience: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/read"),
	}
	cid, err := delegation.CID()
	require.NoError(t, err)

	inv := sign(t, b, auth.Invocation{
		Issuer: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/write"), Arguments: map[string]any{},
		Proofs: []blake3hash.Hash{cid},
	})

	store, err := auth.NewMemoryProofStore(delegation)
	require.NoError(t, err)
	resolver := auth.StaticKeyResolver{a.did: a.pub, b.did: b.pub}

	_, err = auth.Check(ctx, inv, store, resolver)
	require.Error(t, err)
	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.KindCommandEscalation, authErr.Kind)
}

// A powerline delegation at the root implies its issuer as subject.
func TestChainPowerlineDelegation(t *testing.T) {
	ctx := context.Background()
	a := newKeypair(t, "did:key:a")
	b := newKeypair(t, "did:key:b")
	c := newKeypair(t, "did:key:c")

	delegation := auth.Delegation{
		Issuer: a.did, Audience: b.did, Subject: auth.AnySubject,
	}
	cid, err := delegation.CID()
	require.NoError(t, err)
	store, err := auth.NewMemoryProofStore(delegation)
	require.NoError(t, err)
	resolver := auth.StaticKeyResolver{a.did: a.pub, b.did: b.pub, c.did: c.pub}

	okInv := sign(t, b, auth.Invocation{
		Issuer: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/read"), Arguments: map[string]any{},
		Proofs: []blake3hash.Hash{cid},
	})
	_, err = auth.Check(ctx, okInv, store, resolver)
	assert.NoError(t, err)

	badInv := sign(t, b, auth.Invocation{
		Issuer: b.did, Subject: auth.SpecificSubject(c.did),
		Command: auth.ParseCommand("/storage/read"), Arguments: map[string]any{},
		Proofs: []blake3hash.Hash{cid},
	})
	_, err = auth.Check(ctx, badInv, store, resolver)
	require.Error(t, err)
	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.KindUnprovenSubject, authErr.Kind)
}

// A two-hop chain with non-overlapping time windows has no valid instant.
func TestChainNonOverlappingTimeWindowsFail(t *testing.T) {
	ctx := context.Background()
	a := newKeypair(t, "did:key:a")
	b := newKeypair(t, "did:key:b")
	c := newKeypair(t, "did:key:c")

	exp1 := uint64(100)
	nbf2 := uint64(200)

	first := auth.Delegation{
		Issuer: a.did, Audience: b.did, Subject: auth.SpecificSubject(a.did),
		Expiration: &exp1,
	}
	second := auth.Delegation{
		Issuer: b.did, Audience: c.did, Subject: auth.SpecificSubject(a.did),
		NotBefore: &nbf2,
	}
	cid1, err := first.CID()
	require.NoError(t, err)
	cid2, err := second.CID()
	require.NoError(t, err)

	store, err := auth.NewMemoryProofStore(first, second)
	require.NoError(t, err)
	resolver := auth.StaticKeyResolver{a.did: a.pub, b.did: b.pub, c.did: c.pub}

	inv := sign(t, c, auth.Invocation{
		Issuer: c.did, Subject: auth.SpecificSubject(a.did),
		Arguments: map[string]any{},
		Proofs:    []blake3hash.Hash{cid1, cid2},
	})

	_, err = auth.Check(ctx, inv, store, resolver)
	require.Error(t, err)
	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.KindInvalidTimeWindow, authErr.Kind)
}

// A policy predicate constrains the invocation's arguments: a matching
// argument passes, a violating one fails, and an unresolvable selector is
// an incompatibility rather than a violation.
func TestChainPolicyEvaluation(t *testing.T) {
	ctx := context.Background()
	a := newKeypair(t, "did:key:a")
	b := newKeypair(t, "did:key:b")

	delegation := auth.Delegation{
		Issuer: a.did, Audience: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/write"),
		Policy: auth.Policy{
			{Selector: "bucket", Schema: []byte(`{"const": "dialog-bucket"}`)},
		},
	}
	cid, err := delegation.CID()
	require.NoError(t, err)
	store, err := auth.NewMemoryProofStore(delegation)
	require.NoError(t, err)
	resolver := auth.StaticKeyResolver{a.did: a.pub, b.did: b.pub}

	invoke := func(args map[string]any) error {
		inv := sign(t, b, auth.Invocation{
			Issuer: b.did, Subject: auth.SpecificSubject(a.did),
			Command: auth.ParseCommand("/storage/write"), Arguments: args,
			Proofs: []blake3hash.Hash{cid},
		})
		_, err := auth.Check(ctx, inv, store, resolver)
		return err
	}

	assert.NoError(t, invoke(map[string]any{"bucket": "dialog-bucket"}))

	err = invoke(map[string]any{"bucket": "someone-elses-bucket"})
	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.KindPolicyViolation, authErr.Kind)

	err = invoke(map[string]any{"key": "no-bucket-argument"})
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.KindPolicyIncompatibility, authErr.Kind)
}

// A chain listed leaf-to-root checks identically to the same chain listed
// root-to-leaf: proofs are canonicalized before the walk.
func TestChainOrderIsCanonicalized(t *testing.T) {
	ctx := context.Background()
	a := newKeypair(t, "did:key:a")
	b := newKeypair(t, "did:key:b")
	c := newKeypair(t, "did:key:c")

	root := auth.Delegation{
		Issuer: a.did, Audience: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage"),
	}
	leaf := auth.Delegation{
		Issuer: b.did, Audience: c.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/read"),
	}
	rootCID, err := root.CID()
	require.NoError(t, err)
	leafCID, err := leaf.CID()
	require.NoError(t, err)

	store, err := auth.NewMemoryProofStore(root, leaf)
	require.NoError(t, err)
	resolver := auth.StaticKeyResolver{a.did: a.pub, b.did: b.pub, c.did: c.pub}

	for _, proofs := range [][]blake3hash.Hash{
		{rootCID, leafCID},
		{leafCID, rootCID},
	} {
		inv := sign(t, c, auth.Invocation{
			Issuer: c.did, Subject: auth.SpecificSubject(a.did),
			Command: auth.ParseCommand("/storage/read"), Arguments: map[string]any{},
			Proofs: proofs,
		})
		_, err = auth.Check(ctx, inv, store, resolver)
		assert.NoError(t, err)
	}
}

// A container round-trips through its wire framing, and the decoded
// invocation still checks against the decoded delegation map.
func TestContainerRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := newKeypair(t, "did:key:a")
	b := newKeypair(t, "did:key:b")

	delegation := auth.Delegation{
		Issuer: a.did, Audience: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/read"),
	}
	cid, err := delegation.CID()
	require.NoError(t, err)

	inv := sign(t, b, auth.Invocation{
		Issuer: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/read"), Arguments: map[string]any{},
		Proofs: []blake3hash.Hash{cid},
	})

	data, err := auth.EncodeContainer(inv, []auth.Delegation{delegation})
	require.NoError(t, err)

	decoded, err := auth.DecodeContainer(data)
	require.NoError(t, err)
	require.Contains(t, decoded.Proofs, cid)
	assert.Equal(t, inv.Issuer, decoded.Invocation.Issuer)

	resolver := auth.StaticKeyResolver{a.did: a.pub, b.did: b.pub}
	_, err = auth.Check(ctx, decoded.Invocation, decoded.Proofs, resolver)
	assert.NoError(t, err)
}

// Tampering with any byte of a signed envelope invalidates the signature.
func TestTamperedEnvelopeFailsSignatureCheck(t *testing.T) {
	ctx := context.Background()
	a := newKeypair(t, "did:key:a")
	b := newKeypair(t, "did:key:b")

	delegation := auth.Delegation{
		Issuer: a.did, Audience: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/read"),
	}
	cid, err := delegation.CID()
	require.NoError(t, err)
	store, err := auth.NewMemoryProofStore(delegation)
	require.NoError(t, err)
	resolver := auth.StaticKeyResolver{a.did: a.pub, b.did: b.pub}

	inv := sign(t, b, auth.Invocation{
		Issuer: b.did, Subject: auth.SpecificSubject(a.did),
		Command: auth.ParseCommand("/storage/read"), Arguments: map[string]any{},
		Proofs: []blake3hash.Hash{cid},
	})
	inv.Nonce = []byte("tampered-after-signing")

	_, err = auth.Check(ctx, inv, store, resolver)
	require.Error(t, err)
	var authErr *auth.Error
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, auth.KindSignatureInvalid, authErr.Kind)
}
