package match

import (
	"fmt"

	"github.com/sophialabs/lsvstats/internal/domain/record"
)

// Policy is the match semantics of a rule class.
type Policy int

const (
	// PolicyFirst records under the first matching rule only.
	PolicyFirst Policy = iota
	// PolicyAll records under every matching rule.
	PolicyAll
	// PolicyPlatform selects rules by the record's mobile platform.
	PolicyPlatform
)

// Field is the record value a class tests its patterns against.
type Field int

const (
	FieldURL Field = iota
	FieldStatusText
	FieldMethodText
)

// Value extracts the field from rec.
func (f Field) Value(rec *record.Record) string {
	switch f {
	case FieldStatusText:
		return rec.StatusText
	case FieldMethodText:
		return rec.MethodText
	default:
		return rec.URL
	}
}

// Guard decides whether a class is evaluated for a record. Nil means always.
type Guard func(rec *record.Record) bool

// CompiledClass is a rule class ready for evaluation.
type CompiledClass struct {
	Name   string
	Policy Policy
	Field  Field
	Guard  Guard

	rules []*CompiledRule
}

// CompiledRule is a named rule with its compiled pattern.
type CompiledRule struct {
	// Index is the load position and doubles as the sample bucket index.
	Index     int
	Name      string
	Class     string
	Platform  string
	Predicate Predicate
}

// RuleStore holds compiled rules partitioned by class. Rule order within a
// class is load order and decides precedence for PolicyFirst.
type RuleStore struct {
	rules   []*CompiledRule
	classes []*CompiledClass
	byName  map[string]*CompiledClass
}

// NewRuleStore creates an empty store evaluating classes in the given order.
func NewRuleStore(classes []CompiledClass) (*RuleStore, error) {
	s := &RuleStore{
		classes: make([]*CompiledClass, 0, len(classes)),
		byName:  make(map[string]*CompiledClass, len(classes)),
	}
	for i := range classes {
		c := classes[i]
		if _, dup := s.byName[c.Name]; dup {
			return nil, fmt.Errorf("duplicate rule class %q", c.Name)
		}
		c.rules = nil
		s.classes = append(s.classes, &c)
		s.byName[c.Name] = &c
	}
	return s, nil
}

// Add appends a rule to its class and assigns its index.
func (s *RuleStore) Add(r CompiledRule) (*CompiledRule, error) {
	class, ok := s.byName[r.Class]
	if !ok {
		return nil, fmt.Errorf("unknown rule class %q", r.Class)
	}
	r.Index = len(s.rules)
	cr := &r
	s.rules = append(s.rules, cr)
	class.rules = append(class.rules, cr)
	return cr, nil
}

// Len returns the number of rules.
func (s *RuleStore) Len() int {
	return len(s.rules)
}

// Rule returns the rule at index i.
func (s *RuleStore) Rule(i int) *CompiledRule {
	return s.rules[i]
}

// Rules returns all rules in load order.
func (s *RuleStore) Rules() []*CompiledRule {
	return s.rules
}

// Classes returns the classes in evaluation order.
func (s *RuleStore) Classes() []*CompiledClass {
	return s.classes
}

// RulesFor returns the rules of a class in load order.
func (s *RuleStore) RulesFor(class string) []*CompiledRule {
	c, ok := s.byName[class]
	if !ok {
		return nil
	}
	return c.rules
}

// Names returns the rule names in load order.
func (s *RuleStore) Names() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name
	}
	return names
}
