package auth

import (
	"context"

	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/internal/codec"
)

// wireSubject mirrors Subject with a fixed field order.
type wireSubject struct {
	_   struct{} `cbor:",toarray"`
	Any bool
	DID string
}

func (s Subject) toWire() wireSubject { return wireSubject{Any: s.any, DID: s.did} }

func (w wireSubject) toSubject() Subject { return Subject{any: w.Any, did: w.DID} }

// wireDelegation mirrors Delegation with a fixed field order, the preimage
// of a delegation's CID.
type wireDelegation struct {
	_          struct{} `cbor:",toarray"`
	Issuer     string
	Audience   string
	Subject    wireSubject
	Command    []string
	Policy     Policy
	NotBefore  *uint64
	Expiration *uint64
	Meta       map[string]any
	Nonce      []byte
}

func (d Delegation) toWire() wireDelegation {
	return wireDelegation{
		Issuer: d.Issuer, Audience: d.Audience, Subject: d.Subject.toWire(),
		Command: []string(d.Command), Policy: d.Policy, NotBefore: d.NotBefore,
		Expiration: d.Expiration, Meta: d.Meta, Nonce: d.Nonce,
	}
}

// Encode produces d's canonical byte form.
func (d Delegation) Encode() ([]byte, error) {
	return codec.Marshal(d.toWire())
}

// CID returns d's content address, the identifier invocation.proofs
// references.
func (d Delegation) CID() (blake3hash.Hash, error) {
	data, err := d.Encode()
	if err != nil {
		return blake3hash.Hash{}, err
	}
	return blake3hash.Sum(data), nil
}

func (w wireDelegation) toDelegation() Delegation {
	return Delegation{
		Issuer: w.Issuer, Audience: w.Audience, Subject: w.Subject.toSubject(),
		Command: Command(w.Command), Policy: w.Policy, NotBefore: w.NotBefore,
		Expiration: w.Expiration, Meta: w.Meta, Nonce: w.Nonce,
	}
}

// Envelope tags discriminating the two token kinds inside a container.
const (
	ContainerTag  = "ctn-v1"
	DelegationTag = "ucan/dlg@1.0.0-rc.1"
	InvocationTag = "ucan/inv@1.0.0-rc.1"
)

// wireToken is one container element: a tagged, canonically-encoded
// payload plus the issuer's signature over it. Delegation tokens carry no
// signature in this module; invocation tokens carry the invocation's.
type wireToken struct {
	_         struct{} `cbor:",toarray"`
	Tag       string
	Payload   []byte
	Signature []byte
}

// Container is a decoded UCAN container: the invocation it frames plus
// its delegations keyed by CID for proof lookup.
type Container struct {
	Invocation Invocation
	Proofs     MemoryProofStore
}

// EncodeContainer frames inv and its delegations as a
// `{"ctn-v1": [bytes...]}` DAG-CBOR map, invocation token first.
func EncodeContainer(inv Invocation, delegations []Delegation) ([]byte, error) {
	invPayload, err := inv.SigningPayload()
	if err != nil {
		return nil, err
	}
	tokens := make([][]byte, 0, len(delegations)+1)
	token, err := codec.Marshal(wireToken{Tag: InvocationTag, Payload: invPayload, Signature: inv.Signature})
	if err != nil {
		return nil, err
	}
	tokens = append(tokens, token)

	for _, d := range delegations {
		payload, err := d.Encode()
		if err != nil {
			return nil, err
		}
		token, err := codec.Marshal(wireToken{Tag: DelegationTag, Payload: payload})
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return codec.Marshal(map[string][][]byte{ContainerTag: tokens})
}

// DecodeContainer parses a container's bytes back into its invocation and
// CID-keyed delegation map. The framing is checked strictly: a missing
// "ctn-v1" key, an empty token list, a first token that is not an
// invocation, or a later token that is not a delegation all fail with
// MalformedContainer.
func DecodeContainer(data []byte) (*Container, error) {
	var framed map[string][][]byte
	if err := codec.Unmarshal(data, &framed); err != nil {
		return nil, malformedContainer("container is not a CBOR map of byte lists: " + err.Error())
	}
	tokens, ok := framed[ContainerTag]
	if !ok {
		return nil, malformedContainer(`container lacks the "ctn-v1" key`)
	}
	if len(tokens) == 0 {
		return nil, malformedContainer("container holds no tokens")
	}

	var first wireToken
	if err := codec.Unmarshal(tokens[0], &first); err != nil {
		return nil, malformedContainer("first token is not an envelope: " + err.Error())
	}
	if first.Tag != InvocationTag {
		return nil, malformedContainer("first token must be an invocation, got tag " + first.Tag)
	}
	var envelope wireInvocationEnvelope
	if err := codec.Unmarshal(first.Payload, &envelope); err != nil {
		return nil, malformedContainer("invocation payload does not decode: " + err.Error())
	}
	inv := envelope.toInvocation()
	inv.Signature = first.Signature

	proofs := make(MemoryProofStore, len(tokens)-1)
	for _, raw := range tokens[1:] {
		var token wireToken
		if err := codec.Unmarshal(raw, &token); err != nil {
			return nil, malformedContainer("delegation token is not an envelope: " + err.Error())
		}
		if token.Tag != DelegationTag {
			return nil, malformedContainer("expected a delegation token, got tag " + token.Tag)
		}
		var w wireDelegation
		if err := codec.Unmarshal(token.Payload, &w); err != nil {
			return nil, malformedContainer("delegation payload does not decode: " + err.Error())
		}
		d := w.toDelegation()
		cid, err := d.CID()
		if err != nil {
			return nil, err
		}
		proofs[cid] = d
	}
	return &Container{Invocation: inv, Proofs: proofs}, nil
}

// ProofStore loads a delegation proof by its CID.
type ProofStore interface {
	LoadProof(ctx context.Context, cid blake3hash.Hash) (Delegation, bool, error)
}

// MemoryProofStore is an in-memory ProofStore keyed by CID, modeling a
// decoded UCAN container's `{"ctn-v1": [...]}` delegation map.
type MemoryProofStore map[blake3hash.Hash]Delegation

// NewMemoryProofStore indexes delegations by their own CID.
func NewMemoryProofStore(delegations ...Delegation) (MemoryProofStore, error) {
	store := make(MemoryProofStore, len(delegations))
	for _, d := range delegations {
		cid, err := d.CID()
		if err != nil {
			return nil, err
		}
		store[cid] = d
	}
	return store, nil
}

func (m MemoryProofStore) LoadProof(_ context.Context, cid blake3hash.Hash) (Delegation, bool, error) {
	d, ok := m[cid]
	return d, ok, nil
}
