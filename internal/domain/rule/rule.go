package rule

import "strings"

// Class names shipped with the default class table.
const (
	ClassError   = "error"
	ClassAll     = "all"
	ClassOne     = "one"
	ClassInvalid = "invalid"
	ClassHeader  = "header"
	ClassMobile  = "mobile"
)

// Policies decide how many rules of a class may record for one request.
const (
	PolicyFirst    = "first"
	PolicyAll      = "all"
	PolicyPlatform = "platform"
)

// Fields name the record value a class tests its patterns against.
const (
	FieldURL        = "url"
	FieldStatusText = "status_text"
	FieldMethodText = "method_text"
)

// Platform keys recognised by the platform policy.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformAny     = "mobiles"
)

const errorGuard = "status > 400 && status < 600 && status != 501"

// Definition is one named pattern as read from the rules file.
type Definition struct {
	Name    string
	Class   string
	Pattern string
	// Exclude, when set, vetoes a match of Pattern.
	Exclude       string
	CaseSensitive bool
	// Source locates the definition for diagnostics, e.g. "rules.conf:12".
	Source string
}

// ClassDefinition configures how one rule class takes part in classification.
type ClassDefinition struct {
	Name   string
	Policy string
	Field  string
	// When is an expression over the record deciding whether the class is
	// evaluated at all. Empty means always.
	When string
}

// Set is the parsed content of a rules file.
type Set struct {
	Classes []ClassDefinition
	Rules   []Definition
}

// DefaultClasses returns the built-in class table in evaluation order.
func DefaultClasses() []ClassDefinition {
	return []ClassDefinition{
		{Name: ClassError, Policy: PolicyFirst, Field: FieldStatusText, When: errorGuard},
		{Name: ClassAll, Policy: PolicyAll, Field: FieldURL, When: "!(" + errorGuard + ") && methodValid"},
		{Name: ClassOne, Policy: PolicyFirst, Field: FieldURL, When: "!(" + errorGuard + ") && methodValid"},
		{Name: ClassInvalid, Policy: PolicyFirst, Field: FieldMethodText, When: "!(" + errorGuard + ") && !methodValid"},
		{Name: ClassHeader, Policy: PolicyAll, Field: FieldMethodText},
		{Name: ClassMobile, Policy: PolicyPlatform, When: `platform != "none"`},
	}
}

var prefixes = []string{ClassError, ClassAll, ClassInvalid, ClassHeader, ClassMobile}

// ClassFromName derives a rule class from the name prefix convention of the
// line-oriented rules format: "error_", "all_", "invalid_", "header_" and
// "mobile_" select their class, anything else is ClassOne.
func ClassFromName(name string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p+"_") {
			return p
		}
	}
	return ClassOne
}

// PlatformKey returns the platform a mobile rule is bound to.
func PlatformKey(name string) string {
	return strings.TrimPrefix(name, ClassMobile+"_")
}
