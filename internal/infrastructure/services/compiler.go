package services

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/sophialabs/lsvstats/internal/domain/match"
	"github.com/sophialabs/lsvstats/internal/domain/record"
	"github.com/sophialabs/lsvstats/internal/domain/rule"
	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
)

// CompileError describes a rule definition that could not be compiled. Such
// rules are skipped; loading carries on with the rest.
type CompileError struct {
	Source string
	Name   string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: rule %q: %v", e.Source, e.Name, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// guardEnv is the environment class guards are evaluated against.
type guardEnv struct {
	Status      int    `expr:"status"`
	StatusText  string `expr:"statusText"`
	Method      string `expr:"method"`
	MethodText  string `expr:"methodText"`
	MethodValid bool   `expr:"methodValid"`
	IsError     bool   `expr:"isError"`
	URL         string `expr:"url"`
	Cache       string `expr:"cache"`
	Platform    string `expr:"platform"`
}

func newGuardEnv(rec *record.Record) guardEnv {
	return guardEnv{
		Status:      rec.Status,
		StatusText:  rec.StatusText,
		Method:      rec.Method.String(),
		MethodText:  rec.MethodText,
		MethodValid: rec.Method.Valid(),
		IsError:     isErrorStatus(rec.Status),
		URL:         rec.URL,
		Cache:       rec.Cache.String(),
		Platform:    rec.Platform.String(),
	}
}

func isErrorStatus(status int) bool {
	return status > 400 && status < 600 && status != 501
}

// RuleCompiler turns rule and class definitions into a match.RuleStore.
type RuleCompiler struct {
	logger ports.Logger
}

// NewRuleCompiler creates a new RuleCompiler.
func NewRuleCompiler(logger ports.Logger) *RuleCompiler {
	return &RuleCompiler{logger: logger}
}

// Compile builds a store from set. Invalid class definitions fail the whole
// compilation; invalid rules are skipped, logged and returned as
// CompileErrors.
func (c *RuleCompiler) Compile(set *rule.Set) (*match.RuleStore, []*CompileError, error) {
	classDefs := set.Classes
	if len(classDefs) == 0 {
		classDefs = rule.DefaultClasses()
	}

	classes := make([]match.CompiledClass, 0, len(classDefs))
	policies := make(map[string]match.Policy, len(classDefs))
	for _, cd := range classDefs {
		cc, err := c.CompileClass(cd)
		if err != nil {
			return nil, nil, err
		}
		classes = append(classes, cc)
		policies[cc.Name] = cc.Policy
	}

	store, err := match.NewRuleStore(classes)
	if err != nil {
		return nil, nil, err
	}

	var skipped []*CompileError
	for _, def := range set.Rules {
		cr, err := compileRule(def, policies)
		if err == nil {
			_, err = store.Add(cr)
		}
		if err != nil {
			ce := &CompileError{Source: def.Source, Name: def.Name, Err: err}
			skipped = append(skipped, ce)
			c.logger.Warn("skipping rule", "rule", def.Name, "source", def.Source, "error", err)
			continue
		}
		c.logger.Debug("compiled rule", "rule", def.Name, "class", def.Class)
	}

	return store, skipped, nil
}

// CompileClass validates a class definition and compiles its guard.
func (c *RuleCompiler) CompileClass(cd rule.ClassDefinition) (match.CompiledClass, error) {
	if cd.Name == "" {
		return match.CompiledClass{}, errors.New("rule class without a name")
	}
	policy, err := parsePolicy(cd.Policy)
	if err != nil {
		return match.CompiledClass{}, fmt.Errorf("class %q: %w", cd.Name, err)
	}
	field, err := parseField(cd.Field)
	if err != nil {
		return match.CompiledClass{}, fmt.Errorf("class %q: %w", cd.Name, err)
	}
	guard, err := compileGuard(cd.When)
	if err != nil {
		return match.CompiledClass{}, fmt.Errorf("class %q: %w", cd.Name, err)
	}
	return match.CompiledClass{Name: cd.Name, Policy: policy, Field: field, Guard: guard}, nil
}

func parsePolicy(s string) (match.Policy, error) {
	switch s {
	case rule.PolicyFirst, "":
		return match.PolicyFirst, nil
	case rule.PolicyAll:
		return match.PolicyAll, nil
	case rule.PolicyPlatform:
		return match.PolicyPlatform, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", s)
	}
}

func parseField(s string) (match.Field, error) {
	switch s {
	case rule.FieldURL, "":
		return match.FieldURL, nil
	case rule.FieldStatusText:
		return match.FieldStatusText, nil
	case rule.FieldMethodText:
		return match.FieldMethodText, nil
	default:
		return 0, fmt.Errorf("unknown field %q", s)
	}
}

// compileGuard compiles a boolean expr expression. An empty expression
// yields a nil guard, which admits every record.
func compileGuard(when string) (match.Guard, error) {
	if when == "" {
		return nil, nil
	}
	program, err := expr.Compile(when, expr.Env(guardEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile guard %q: %w", when, err)
	}
	return guardFunc(program), nil
}

func guardFunc(program *vm.Program) match.Guard {
	return func(rec *record.Record) bool {
		out, err := expr.Run(program, newGuardEnv(rec))
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		return ok
	}
}

func compileRule(def rule.Definition, policies map[string]match.Policy) (match.CompiledRule, error) {
	if def.Name == "" {
		return match.CompiledRule{}, errors.New("missing name")
	}
	policy, ok := policies[def.Class]
	if !ok {
		return match.CompiledRule{}, fmt.Errorf("unknown rule class %q", def.Class)
	}

	cr := match.CompiledRule{Name: def.Name, Class: def.Class}

	if policy == match.PolicyPlatform {
		cr.Platform = rule.PlatformKey(def.Name)
		switch cr.Platform {
		case rule.PlatformIOS, rule.PlatformAndroid, rule.PlatformAny:
			return cr, nil
		default:
			return match.CompiledRule{}, fmt.Errorf("unknown platform %q", cr.Platform)
		}
	}

	include, err := compilePattern(def.Pattern, def.CaseSensitive)
	if err != nil {
		return match.CompiledRule{}, err
	}
	cr.Predicate = match.Regexp(include)

	if def.Exclude != "" {
		exclude, err := compilePattern(def.Exclude, def.CaseSensitive)
		if err != nil {
			return match.CompiledRule{}, fmt.Errorf("exclude: %w", err)
		}
		cr.Predicate = match.And(cr.Predicate, match.Not(match.Regexp(exclude)))
	}
	return cr, nil
}

func compilePattern(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, errors.New("empty pattern")
	}
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}
