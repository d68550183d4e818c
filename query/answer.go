package query

// Factor is one piece of evidence that bound a variable to a value: which
// position of which application matched which fact.
type Factor struct {
	Selector    string // "the" | "of" | "is" | "cause"
	Application *FactApplication
	Fact        Fact
}

func (f Factor) value() Value {
	switch f.Selector {
	case "the":
		return Value{Kind: KindString, String: string(f.Fact.The)}
	case "of":
		return EntityValue(f.Fact.Of)
	case "is":
		return f.Fact.Is
	case "cause":
		return BytesValue(f.Fact.Cause.Bytes())
	default:
		return Value{}
	}
}

func (f Factor) sameContent(o Factor) bool {
	return f.Application == o.Application && f.Fact.Equal(o.Fact) && f.Selector == o.Selector
}

// Factors is a variable's binding: one primary factor plus any alternates
// that independently derived the same value.
type Factors struct {
	Primary    Factor
	Alternates []Factor
}

// Value returns the value this variable is bound to.
func (f Factors) Value() Value { return f.Primary.value() }

// Answer carries one evaluation branch's variable bindings (with
// provenance) and the application→fact record of every application
// evaluated along this branch.
type Answer struct {
	Conclusions map[string]*Factors
	Facts       map[*FactApplication]Fact
}

// NewAnswer returns an empty answer, the starting point of a query.
func NewAnswer() *Answer {
	return &Answer{Conclusions: map[string]*Factors{}, Facts: map[*FactApplication]Fact{}}
}

func (a *Answer) clone() *Answer {
	next := &Answer{
		Conclusions: make(map[string]*Factors, len(a.Conclusions)),
		Facts:       make(map[*FactApplication]Fact, len(a.Facts)),
	}
	for k, v := range a.Conclusions {
		cp := *v
		cp.Alternates = append([]Factor(nil), v.Alternates...)
		next.Conclusions[k] = &cp
	}
	for k, v := range a.Facts {
		next.Facts[k] = v
	}
	return next
}

// bind records factor as evidence for name being bound to value. A first
// binding establishes the primary factor. A later factor supporting the
// same value is recorded as an alternate unless its content duplicates an
// existing factor (idempotent). A factor disagreeing with the established
// value fails with AssignmentError.
func (a *Answer) bind(name string, value Value, factor Factor) error {
	existing, ok := a.Conclusions[name]
	if !ok {
		a.Conclusions[name] = &Factors{Primary: factor}
		return nil
	}
	if !existing.Value().Equal(value) {
		return assignmentError(name)
	}
	if existing.Primary.sameContent(factor) {
		return nil
	}
	for _, alt := range existing.Alternates {
		if alt.sameContent(factor) {
			return nil
		}
	}
	existing.Alternates = append(existing.Alternates, factor)
	return nil
}

// Merge folds a selected (application, fact) pair into a: application→
// fact is recorded (erroring if already bound to a different fact), and
// every named-variable position of app gains a Factor. Merge never
// mutates a; it returns a new Answer.
func (a *Answer) Merge(app *FactApplication, fact Fact) (*Answer, error) {
	next := a.clone()

	if existing, ok := next.Facts[app]; ok {
		if !existing.Equal(fact) {
			return nil, &Error{Kind: KindAssignment, Message: "application is already bound to a different fact"}
		}
	} else {
		next.Facts[app] = fact
	}

	positions := []struct {
		term     Term
		selector string
		value    Value
	}{
		{app.The, "the", Value{Kind: KindString, String: string(fact.The)}},
		{app.Of, "of", EntityValue(fact.Of)},
		{app.Is, "is", fact.Is},
		{app.Cause, "cause", BytesValue(fact.Cause.Bytes())},
	}
	for _, p := range positions {
		if p.term.IsVariable() && p.term.Name() != "" {
			factor := Factor{Selector: p.selector, Application: app, Fact: fact}
			if err := next.bind(p.term.Name(), p.value, factor); err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

// Realize projects the fact an application matched along this answer
// branch. Because every position was already checked for consistency
// during Merge, the recorded application→fact mapping is the realized
// fact for constant, named-variable, and blank positions alike.
func (a *Answer) Realize(app *FactApplication) (Fact, error) {
	fact, ok := a.Facts[app]
	if !ok {
		return Fact{}, unboundVariable("application has not been evaluated along this branch")
	}
	return fact, nil
}
