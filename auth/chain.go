package auth

import "context"

// Check validates inv's signature and proof chain, returning the
// effective TimeRange on success.
func Check(ctx context.Context, inv Invocation, store ProofStore, resolver KeyResolver) (TimeRange, error) {
	if err := verifySignature(ctx, inv, resolver); err != nil {
		return TimeRange{}, err
	}

	proofs, err := loadProofChain(ctx, inv, store)
	if err != nil {
		return TimeRange{}, err
	}
	proofs = canonicalizeChain(proofs, inv.Subject)

	timeRange := TimeRange{Expiration: inv.Expiration}
	invocationSubjectDID := subjectDID(inv.Subject)

	var authorization *Delegation
	var resolved string
	for i, proof := range proofs {
		// 1. Resolve subject.
		switch {
		case !proof.Subject.IsAny():
			resolved = proof.Subject.DID()
		case i == 0:
			resolved = proof.Issuer
		}

		// 2. Check subject.
		if resolved != invocationSubjectDID {
			if i == 0 && proof.Subject.IsAny() {
				return TimeRange{}, unprovenSubject(invocationSubjectDID)
			}
			return TimeRange{}, unauthorizedSubject(resolved, invocationSubjectDID)
		}

		// 3. Check linkage.
		if authorization != nil {
			if proof.Issuer != authorization.Audience {
				return TimeRange{}, unauthorizedSubject(proof.Issuer, authorization.Audience)
			}
		} else if proof.Issuer != invocationSubjectDID {
			return TimeRange{}, unauthorizedSubject(proof.Issuer, invocationSubjectDID)
		}

		// 4. Check command.
		if !inv.Command.StartsWith(proof.Command) {
			return TimeRange{}, commandEscalation(inv.Command)
		}

		// 5. Evaluate policy.
		if err := proof.Policy.evaluate(inv.Arguments); err != nil {
			return TimeRange{}, err
		}

		// 6. Intersect time.
		timeRange = timeRange.Intersect(TimeRange{NotBefore: proof.NotBefore, Expiration: proof.Expiration})

		// 7. authorization := proof.
		p := proof
		authorization = &p
	}

	// Chain termination: with proofs, the invocation's issuer must
	// be the last proof's audience; self-issued (no proofs) requires
	// issuer == subject.
	if authorization != nil {
		if inv.Issuer != authorization.Audience {
			return TimeRange{}, unauthorizedSubject(inv.Issuer, authorization.Audience)
		}
	} else if inv.Issuer != invocationSubjectDID {
		return TimeRange{}, unauthorizedSubject(inv.Issuer, invocationSubjectDID)
	}

	if timeRange.Empty() {
		return TimeRange{}, invalidTimeWindow()
	}
	return timeRange, nil
}

func subjectDID(s Subject) string {
	if s.IsAny() {
		return ""
	}
	return s.DID()
}

// loadProofChain resolves inv.Proofs (a list of CIDs) into delegations, in
// the order the invocation lists them.
func loadProofChain(ctx context.Context, inv Invocation, store ProofStore) ([]Delegation, error) {
	proofs := make([]Delegation, 0, len(inv.Proofs))
	for _, cid := range inv.Proofs {
		d, ok, err := store.LoadProof(ctx, cid)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, missingProof(cid.ShortString())
		}
		proofs = append(proofs, d)
	}
	return proofs, nil
}

// canonicalizeChain normalizes proofs to root-to-leaf order. The given
// order is kept if it already links root-to-leaf; otherwise the reversal
// is used if it does. A list that links neither way is passed through
// unchanged and fails the walk's linkage check.
func canonicalizeChain(proofs []Delegation, subject Subject) []Delegation {
	if len(proofs) <= 1 || linksRootToLeaf(proofs, subject) {
		return proofs
	}
	reversed := make([]Delegation, len(proofs))
	for i, p := range proofs {
		reversed[len(proofs)-1-i] = p
	}
	if linksRootToLeaf(reversed, subject) {
		return reversed
	}
	return proofs
}

// linksRootToLeaf reports whether proofs already read root-to-leaf: the
// first proof is issued by the invocation subject (or is a powerline,
// which implies its own issuer as subject), and every later proof is
// issued by its predecessor's audience.
func linksRootToLeaf(proofs []Delegation, subject Subject) bool {
	first := proofs[0]
	if !first.Subject.IsAny() && first.Issuer != subjectDID(subject) {
		return false
	}
	for i := 1; i < len(proofs); i++ {
		if proofs[i].Issuer != proofs[i-1].Audience {
			return false
		}
	}
	return true
}
