package match

import "regexp"

// Predicate tests a record field value.
type Predicate func(string) bool

// Regexp returns a predicate matching values that contain a match of re.
func Regexp(re *regexp.Regexp) Predicate {
	return re.MatchString
}

// And matches when every predicate matches. And() matches everything.
func And(predicates ...Predicate) Predicate {
	return func(s string) bool {
		for _, p := range predicates {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(s string) bool {
		return !p(s)
	}
}
