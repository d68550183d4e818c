package query

// With lowers the concept-layer pattern `{this, has: A}` into the
// equivalent FactApplication over attr, compiling to the same plan as a
// directly written fact application.
func With(attr Attribute, this, has Term, cardinality Cardinality) FactApplication {
	return FactApplication{
		The:         AttrConst(attr),
		Of:          this,
		Is:          has,
		Cause:       Blank(),
		Cardinality: cardinality,
	}
}
