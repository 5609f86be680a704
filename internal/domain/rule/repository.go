package rule

import (
	"context"
	"errors"
)

// ErrNoRules indicates that no usable rule was loaded.
var ErrNoRules = errors.New("no usable rules")

// Repository is the port for loading rule definitions.
type Repository interface {
	// Load reads the rule set. Rules are returned in file order.
	Load(ctx context.Context) (*Set, error)
}
