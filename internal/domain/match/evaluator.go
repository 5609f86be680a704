package match

import (
	"github.com/sophialabs/lsvstats/internal/domain/record"
	"github.com/sophialabs/lsvstats/internal/domain/rule"
)

// Evaluator classifies finalized records against a RuleStore.
type Evaluator struct{}

// NewEvaluator creates a new Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate appends to dst the index of every rule the record is recorded
// under and returns the extended slice. Classes run in store order; a class
// is skipped when it has no rules or its guard rejects the record.
func (e *Evaluator) Evaluate(rec *record.Record, store *RuleStore, dst []int) []int {
	for _, c := range store.classes {
		if len(c.rules) == 0 {
			continue
		}
		if c.Guard != nil && !c.Guard(rec) {
			continue
		}

		if c.Policy == PolicyPlatform {
			dst = matchPlatform(rec.Platform, c.rules, dst)
			continue
		}

		value := c.Field.Value(rec)
		for _, r := range c.rules {
			if !r.Predicate(value) {
				continue
			}
			dst = append(dst, r.Index)
			if c.Policy == PolicyFirst {
				break
			}
		}
	}
	return dst
}

func matchPlatform(p record.Platform, rules []*CompiledRule, dst []int) []int {
	if p == record.PlatformNone {
		return dst
	}
	for _, r := range rules {
		switch r.Platform {
		case rule.PlatformAny:
		case rule.PlatformIOS:
			if p != record.PlatformIOS {
				continue
			}
		case rule.PlatformAndroid:
			if p != record.PlatformAndroid {
				continue
			}
		default:
			continue
		}
		dst = append(dst, r.Index)
	}
	return dst
}
