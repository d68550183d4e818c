package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Predicate is one policy clause: a dot-path selector into the
// invocation's arguments, and a JSON Schema the selected value must
// satisfy.
type Predicate struct {
	Selector string
	Schema   json.RawMessage
}

// Policy is a delegation's list of predicates; an invocation satisfies
// the policy only if every predicate passes.
type Policy []Predicate

// evaluate runs every predicate in p against arguments. A `false` schema
// match fails with PolicyViolation; a selector or schema that cannot be
// resolved at all fails with PolicyIncompatibility.
func (p Policy) evaluate(arguments map[string]any) error {
	for i, predicate := range p {
		value, ok := selectPath(arguments, predicate.Selector)
		if !ok {
			return policyIncompatibility(fmt.Sprintf("selector %q did not resolve in arguments", predicate.Selector))
		}

		name := fmt.Sprintf("predicate-%d.json", i)
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name, bytes.NewReader(predicate.Schema)); err != nil {
			return policyIncompatibility(fmt.Sprintf("predicate schema %q invalid: %v", predicate.Selector, err))
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return policyIncompatibility(fmt.Sprintf("predicate schema %q failed to compile: %v", predicate.Selector, err))
		}
		if err := schema.Validate(value); err != nil {
			return policyViolation(fmt.Sprintf("predicate %q rejected argument: %v", predicate.Selector, err))
		}
	}
	return nil
}

// selectPath reads a "."-separated path out of nested maps, the IPLD-ish
// shape invocation arguments take once decoded from CBOR/JSON.
func selectPath(arguments map[string]any, selector string) (any, bool) {
	if selector == "" || selector == "." {
		return arguments, true
	}
	var cur any = arguments
	for _, segment := range strings.Split(strings.Trim(selector, "."), ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[segment]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
