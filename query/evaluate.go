package query

import "context"

// SecondaryLookupCost is the fixed per-match cost Estimate adds when a
// CardinalityOne application only constrains `is`, since resolving the
// winner there requires one secondary (attribute, entity) lookup per
// candidate.
const SecondaryLookupCost = 4

// Estimate reports app's approximate evaluation cost given which
// positions are known.
func Estimate(app FactApplication) int {
	sel := app.selector()
	base := 1
	switch IndexFor(sel) {
	case IndexEAV:
		base = 1
	case IndexAEV:
		base = 2
	case IndexVAE:
		base = 3
	}
	if app.Cardinality == CardinalityOne && IndexFor(sel) == IndexVAE {
		base += SecondaryLookupCost
	}
	return base
}

// Evaluate takes an input answer stream and yields the output answer
// stream for app: each input answer contributes zero or more output
// answers, one per matching (and, for CardinalityOne, winning) fact.
func Evaluate(ctx context.Context, store ArtifactStore, input []*Answer, app *FactApplication) ([]*Answer, error) {
	var out []*Answer
	for _, in := range input {
		sel := effectiveSelector(in, app)
		if sel.The == nil && sel.Of == nil && sel.Is == nil {
			return nil, emptySelector()
		}

		facts, err := store.Select(ctx, sel)
		if err != nil {
			return nil, factStoreError(err)
		}

		var winners []Fact
		if app.Cardinality == CardinalityMany {
			winners = facts
		} else {
			winners, err = resolveCardinalityOne(ctx, store, sel, facts)
			if err != nil {
				return nil, err
			}
		}

		for _, f := range winners {
			next, err := in.Merge(app, f)
			if err != nil {
				return nil, err
			}
			out = append(out, next)
		}
	}
	return out, nil
}

// effectiveSelector narrows app's own constant positions with any
// variable position already bound in in, implementing the join across
// sequential applications in a query.
func effectiveSelector(in *Answer, app *FactApplication) Selector {
	base := app.selector()
	sel := Selector{The: base.the, Of: base.of, Is: base.is}

	if app.The.IsVariable() && app.The.Name() != "" {
		if f, ok := in.Conclusions[app.The.Name()]; ok {
			attr := Attribute(f.Value().String)
			sel.The = &attr
		}
	}
	if app.Of.IsVariable() && app.Of.Name() != "" {
		if f, ok := in.Conclusions[app.Of.Name()]; ok {
			v := f.Value()
			e := v.EntityID
			if v.Kind == KindString {
				e = Entity(v.String)
			}
			sel.Of = &e
		}
	}
	if app.Is.IsVariable() && app.Is.Name() != "" {
		if f, ok := in.Conclusions[app.Is.Name()]; ok {
			v := f.Value()
			sel.Is = &v
		}
	}
	return sel
}

// resolveCardinalityOne picks the winner per (attribute, entity) group,
// using the sliding-window strategy for EAV/AEV scans (already grouped by
// the index order) and the scattered strategy for VAE scans (secondary
// lookup per candidate).
func resolveCardinalityOne(ctx context.Context, store ArtifactStore, sel Selector, facts []Fact) ([]Fact, error) {
	if IndexFor(sel.internal()) == IndexVAE {
		return vaeWinners(ctx, store, facts)
	}
	return slidingWindowWinners(facts), nil
}

func slidingWindowWinners(facts []Fact) []Fact {
	var out []Fact
	var candidate *Fact
	for i := range facts {
		f := facts[i]
		switch {
		case candidate == nil:
			c := f
			candidate = &c
		case candidate.The != f.The || candidate.Of != f.Of:
			out = append(out, *candidate)
			c := f
			candidate = &c
		case f.winner(*candidate):
			c := f
			candidate = &c
		}
	}
	if candidate != nil {
		out = append(out, *candidate)
	}
	return out
}

func vaeWinners(ctx context.Context, store ArtifactStore, facts []Fact) ([]Fact, error) {
	var out []Fact
	for _, f := range facts {
		the, of := f.The, f.Of
		group, err := store.Select(ctx, Selector{The: &the, Of: &of})
		if err != nil {
			return nil, factStoreError(err)
		}
		winner := true
		for _, g := range group {
			if g.Equal(f) {
				continue
			}
			if g.winner(f) {
				winner = false
				break
			}
		}
		if winner {
			out = append(out, f)
		}
	}
	return out, nil
}
