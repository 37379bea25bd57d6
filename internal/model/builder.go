package model

// Parameter is a named rate constant or initial amount. Values are mutated
// only by the calibration engine between runs; during a run every
// evaluation receives parameters by value.
type Parameter struct {
	Name  string
	Value float64
}

// RuleTemplate describes how patterns of bound monomers transform, with
// associated rate parameters. Reversible rules carry a non-nil Reverse and
// are expanded in both directions.
//
// MatchOnce controls the matching policy for internally symmetric patterns:
// a match-once rule counts permutations of an automorphic embedding as one
// physical event (homodimerization must not fire twice for the same pair).
type RuleTemplate struct {
	Name      string
	Reactants []ComplexPattern
	Products  []ComplexPattern
	Forward   *Parameter
	Reverse   *Parameter // nil for irreversible rules
	MatchOnce bool
}

// Reversible reports whether the rule expands in both directions.
func (r *RuleTemplate) Reversible() bool { return r.Reverse != nil }

// Initial seeds one concrete species with a starting copy number.
type Initial struct {
	Pattern ComplexPattern
	Amount  *Parameter
}

// Observable is a named aggregate read out of a trajectory: the sum over
// all species matching Pattern, weighted by embedding count.
type Observable struct {
	Name    string
	Pattern ComplexPattern
}

// Model is the validated output of a Builder: immutable declarations ready
// for network expansion.
type Model struct {
	Types       []*MonomerType
	Parameters  []*Parameter
	Rules       []*RuleTemplate
	Initials    []Initial
	Observables []Observable

	typesByName  map[string]*MonomerType
	paramsByName map[string]*Parameter
}

// Type returns a declared monomer type by name, or nil.
func (m *Model) Type(name string) *MonomerType { return m.typesByName[name] }

// Param returns a declared parameter by name, or nil.
func (m *Model) Param(name string) *Parameter { return m.paramsByName[name] }

// ParamValues snapshots all parameter values into a map. The calibration
// engine hands copies of this map to each evaluation so that concurrent
// simulations never share mutable parameter state.
func (m *Model) ParamValues() map[string]float64 {
	out := make(map[string]float64, len(m.Parameters))
	for _, p := range m.Parameters {
		out[p.Name] = p.Value
	}
	return out
}

// RuleParams returns the parameters referenced by rules (rate constants),
// in declaration order and without duplicates. This is the conventional
// "estimate rates only" subset for calibration.
func (m *Model) RuleParams() []*Parameter {
	seen := map[string]bool{}
	var out []*Parameter
	for _, r := range m.Rules {
		for _, p := range []*Parameter{r.Forward, r.Reverse} {
			if p != nil && !seen[p.Name] {
				seen[p.Name] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Builder accumulates declarations and validates them eagerly. There is no
// ambient global model: every declaration call goes through an explicit
// Builder, and Build returns an explicit Model value.
//
// The builder is error-latching: after the first declaration error all
// further calls are no-ops and Build returns that error. This keeps large
// declarative model modules readable without per-call error plumbing.
type Builder struct {
	model Model
	err   error
}

// NewBuilder creates an empty model builder.
func NewBuilder() *Builder {
	return &Builder{model: Model{
		typesByName:  make(map[string]*MonomerType),
		paramsByName: make(map[string]*Parameter),
	}}
}

// Err returns the first declaration error, if any.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Monomer declares a monomer type with ordered sites and optional state
// domains. States keys must name declared sites.
func (b *Builder) Monomer(name string, sites []string, states map[string][]string) *MonomerType {
	t := &MonomerType{
		Name:   name,
		Sites:  append([]string(nil), sites...),
		States: states,
		index:  make(map[string]int, len(sites)),
	}
	if b.err != nil {
		return t
	}
	if _, dup := b.model.typesByName[name]; dup {
		b.fail(newError(ErrCodeDuplicateName, name, "monomer declared twice"))
		return t
	}
	for i, s := range sites {
		if _, dup := t.index[s]; dup {
			b.fail(newError(ErrCodeDuplicateName, name, "site %q declared twice", s))
			return t
		}
		t.index[s] = i
	}
	for site := range states {
		if t.SiteIndex(site) < 0 {
			b.fail(newError(ErrCodeUnknownSite, name, "state domain for unknown site %q", site))
			return t
		}
	}
	b.model.typesByName[name] = t
	b.model.Types = append(b.model.Types, t)
	return t
}

// Parameter declares a named numeric parameter.
func (b *Builder) Parameter(name string, value float64) *Parameter {
	p := &Parameter{Name: name, Value: value}
	if b.err != nil {
		return p
	}
	if _, dup := b.model.paramsByName[name]; dup {
		b.fail(newError(ErrCodeDuplicateName, name, "parameter declared twice"))
		return p
	}
	b.model.paramsByName[name] = p
	b.model.Parameters = append(b.model.Parameters, p)
	return p
}

// RuleOption configures a rule declaration.
type RuleOption func(*RuleTemplate)

// MatchOnce marks a rule as match-once: symmetric embeddings of its
// reactant patterns count as a single physical event.
func MatchOnce() RuleOption {
	return func(r *RuleTemplate) { r.MatchOnce = true }
}

// Rule declares an irreversible rule.
func (b *Builder) Rule(name string, lhs, rhs []ComplexPattern, kf *Parameter, opts ...RuleOption) *RuleTemplate {
	return b.rule(name, lhs, rhs, kf, nil, opts)
}

// RuleReversible declares a rule expanded in both directions with forward
// and reverse rate parameters.
func (b *Builder) RuleReversible(name string, lhs, rhs []ComplexPattern, kf, kr *Parameter, opts ...RuleOption) *RuleTemplate {
	return b.rule(name, lhs, rhs, kf, kr, opts)
}

func (b *Builder) rule(name string, lhs, rhs []ComplexPattern, kf, kr *Parameter, opts []RuleOption) *RuleTemplate {
	r := &RuleTemplate{Name: name, Reactants: lhs, Products: rhs, Forward: kf, Reverse: kr}
	for _, opt := range opts {
		opt(r)
	}
	if b.err != nil {
		return r
	}
	if kf == nil {
		b.fail(newError(ErrCodeUnknownSite, name, "rule without forward rate parameter"))
		return r
	}
	for _, side := range [][]ComplexPattern{lhs, rhs} {
		for _, c := range side {
			if err := c.validate(name); err != nil {
				b.fail(err)
				return r
			}
		}
	}
	for _, prev := range b.model.Rules {
		if prev.Name == name {
			b.fail(newError(ErrCodeDuplicateName, name, "rule declared twice"))
			return r
		}
	}
	b.model.Rules = append(b.model.Rules, r)
	return r
}

// Initial seeds a fully concrete species pattern with a starting amount.
// Concreteness is checked when the expander interns the pattern; bond and
// state validation happens here.
func (b *Builder) Initial(pattern ComplexPattern, amount *Parameter) {
	if b.err != nil {
		return
	}
	if err := pattern.validate("initial " + amount.Name); err != nil {
		b.fail(err)
		return
	}
	b.model.Initials = append(b.model.Initials, Initial{Pattern: pattern, Amount: amount})
}

// Observable declares a named readout pattern.
func (b *Builder) Observable(name string, pattern ComplexPattern) {
	if b.err != nil {
		return
	}
	if err := pattern.validate("observable " + name); err != nil {
		b.fail(err)
		return
	}
	for _, prev := range b.model.Observables {
		if prev.Name == name {
			b.fail(newError(ErrCodeDuplicateName, name, "observable declared twice"))
			return
		}
	}
	b.model.Observables = append(b.model.Observables, Observable{Name: name, Pattern: pattern})
}

// Build finalizes the model. Returns the first declaration error, if any.
func (b *Builder) Build() (*Model, error) {
	if b.err != nil {
		return nil, b.err
	}
	return &b.model, nil
}
