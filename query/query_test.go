package query_test

import (
	"context"
	"testing"

	"github.com/dialog-db/dialog/internal/blake3hash"
	"github.com/dialog-db/dialog/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cause(tag string) blake3hash.Hash {
	return blake3hash.Sum([]byte(tag))
}

// A single assertion, queried with CardinalityMany, yields one result.
func TestSingleAssertionQuery(t *testing.T) {
	ctx := context.Background()
	store := query.NewMemoryArtifactStore()
	store.Assert(query.Fact{
		The: "person/name", Of: "alice", Is: query.StringValue("Alice"), Cause: cause("tx-1"),
	})

	app := &query.FactApplication{
		The:         query.AttrConst("person/name"),
		Of:          query.EntityConst("alice"),
		Is:          query.Var("name"),
		Cause:       query.Blank(),
		Cardinality: query.CardinalityMany,
	}

	out, err := query.Evaluate(ctx, store, []*query.Answer{query.NewAnswer()}, app)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Alice", out[0].Conclusions["name"].Value().String)
}

// Two assertions in separate transactions: CardinalityOne yields one
// result, CardinalityMany yields two.
func TestCardinalityOneVsMany(t *testing.T) {
	ctx := context.Background()
	store := query.NewMemoryArtifactStore()
	store.Assert(query.Fact{The: "person/name", Of: "alice", Is: query.StringValue("Alice"), Cause: cause("tx-1")})
	store.Assert(query.Fact{The: "person/name", Of: "alice", Is: query.StringValue("Alicia"), Cause: cause("tx-2")})

	many := &query.FactApplication{
		The: query.AttrConst("person/name"), Of: query.EntityConst("alice"),
		Is: query.Var("name"), Cause: query.Blank(), Cardinality: query.CardinalityMany,
	}
	out, err := query.Evaluate(ctx, store, []*query.Answer{query.NewAnswer()}, many)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	one := &query.FactApplication{
		The: query.AttrConst("person/name"), Of: query.EntityConst("alice"),
		Is: query.Var("name"), Cause: query.Blank(), Cardinality: query.CardinalityOne,
	}
	out, err = query.Evaluate(ctx, store, []*query.Answer{query.NewAnswer()}, one)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

// With two conflicting values, the CardinalityOne winner is the same
// across EAV, AEV and VAE scans.
func TestCardinalityOneAgreesAcrossIndices(t *testing.T) {
	ctx := context.Background()
	store := query.NewMemoryArtifactStore()
	store.Assert(query.Fact{The: "person/name", Of: "alice", Is: query.StringValue("Alice"), Cause: cause("tx-1")})
	store.Assert(query.Fact{The: "person/name", Of: "alice", Is: query.StringValue("Alicia"), Cause: cause("tx-2")})

	var winningValue string

	// EAV: `of` known.
	eav := &query.FactApplication{
		The: query.Var("attr"), Of: query.EntityConst("alice"),
		Is: query.Var("name"), Cause: query.Blank(), Cardinality: query.CardinalityOne,
	}
	out, err := query.Evaluate(ctx, store, []*query.Answer{query.NewAnswer()}, eav)
	require.NoError(t, err)
	require.Len(t, out, 1)
	winningValue = out[0].Conclusions["name"].Value().String

	// AEV: `the` known, `of` unknown.
	aev := &query.FactApplication{
		The: query.AttrConst("person/name"), Of: query.Var("entity"),
		Is: query.Var("name"), Cause: query.Blank(), Cardinality: query.CardinalityOne,
	}
	out, err = query.Evaluate(ctx, store, []*query.Answer{query.NewAnswer()}, aev)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, winningValue, out[0].Conclusions["name"].Value().String)

	// VAE: only the winning `is` is known.
	vae := &query.FactApplication{
		The: query.Var("attr"), Of: query.Var("entity"),
		Is: query.Const(query.StringValue(winningValue)), Cause: query.Blank(), Cardinality: query.CardinalityOne,
	}
	out, err = query.Evaluate(ctx, store, []*query.Answer{query.NewAnswer()}, vae)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

// A VAE query for the losing value under CardinalityOne returns zero
// results.
func TestVAELosingValueYieldsNoResults(t *testing.T) {
	ctx := context.Background()
	store := query.NewMemoryArtifactStore()
	store.Assert(query.Fact{The: "person/name", Of: "alice", Is: query.StringValue("Alice"), Cause: cause("tx-1")})
	store.Assert(query.Fact{The: "person/name", Of: "alice", Is: query.StringValue("Alicia"), Cause: cause("tx-2")})

	eav := &query.FactApplication{
		The: query.Var("attr"), Of: query.EntityConst("alice"),
		Is: query.Var("name"), Cause: query.Blank(), Cardinality: query.CardinalityOne,
	}
	out, err := query.Evaluate(ctx, store, []*query.Answer{query.NewAnswer()}, eav)
	require.NoError(t, err)
	winningValue := out[0].Conclusions["name"].Value().String

	losingValue := "Alice"
	if winningValue == "Alice" {
		losingValue = "Alicia"
	}

	vae := &query.FactApplication{
		The: query.Var("attr"), Of: query.Var("entity"),
		Is: query.Const(query.StringValue(losingValue)), Cause: query.Blank(), Cardinality: query.CardinalityOne,
	}
	out, err = query.Evaluate(ctx, store, []*query.Answer{query.NewAnswer()}, vae)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMergeDetectsInconsistentBinding(t *testing.T) {
	ctx := context.Background()
	store := query.NewMemoryArtifactStore()
	store.Assert(query.Fact{The: "person/name", Of: "alice", Is: query.StringValue("Alice"), Cause: cause("tx-1")})
	store.Assert(query.Fact{The: "person/age", Of: "alice", Is: query.IntValue(30), Cause: cause("tx-2")})

	first := &query.FactApplication{
		The: query.AttrConst("person/name"), Of: query.EntityConst("alice"),
		Is: query.Var("shared"), Cause: query.Blank(), Cardinality: query.CardinalityMany,
	}
	answers, err := query.Evaluate(ctx, store, []*query.Answer{query.NewAnswer()}, first)
	require.NoError(t, err)
	require.Len(t, answers, 1)

	second := &query.FactApplication{
		The: query.AttrConst("person/age"), Of: query.EntityConst("alice"),
		Is: query.Var("shared"), Cause: query.Blank(), Cardinality: query.CardinalityMany,
	}
	_, err = query.Evaluate(ctx, store, answers, second)
	assert.Error(t, err)
}

func TestConceptLayerLowersToFactApplication(t *testing.T) {
	ctx := context.Background()
	store := query.NewMemoryArtifactStore()
	store.Assert(query.Fact{The: "person/name", Of: "alice", Is: query.StringValue("Alice"), Cause: cause("tx-1")})

	app := query.With("person/name", query.EntityConst("alice"), query.Var("name"), query.CardinalityMany)
	out, err := query.Evaluate(ctx, store, []*query.Answer{query.NewAnswer()}, &app)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Alice", out[0].Conclusions["name"].Value().String)
}
