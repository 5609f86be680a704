package usecases

import (
	"context"
	"fmt"

	"github.com/sophialabs/lsvstats/internal/domain/control"
	"github.com/sophialabs/lsvstats/internal/domain/match"
	"github.com/sophialabs/lsvstats/internal/domain/rule"
	"github.com/sophialabs/lsvstats/internal/infrastructure/ports"
	"github.com/sophialabs/lsvstats/internal/infrastructure/services"
)

// LoadRulesUseCase loads rule definitions and compiles them into a RuleStore.
type LoadRulesUseCase struct {
	repo     rule.Repository
	compiler *services.RuleCompiler
	logger   ports.Logger
}

// NewLoadRulesUseCase creates a new use case.
func NewLoadRulesUseCase(repo rule.Repository, compiler *services.RuleCompiler, logger ports.Logger) *LoadRulesUseCase {
	return &LoadRulesUseCase{
		repo:     repo,
		compiler: compiler,
		logger:   logger,
	}
}

// Execute loads and compiles the rules. It fails with rule.ErrNoRules when
// no rule survives compilation.
func (uc *LoadRulesUseCase) Execute(ctx context.Context) (*match.RuleStore, error) {
	set, err := uc.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	uc.logger.Info("loaded rules from repository", "rules", len(set.Rules), "classes", len(set.Classes))

	store, skipped, err := uc.compiler.Compile(set)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rule classes: %w", err)
	}
	if len(skipped) > 0 {
		uc.logger.Warn("some rules failed to compile", "skipped", len(skipped))
	}
	if store.Len() == 0 {
		return nil, rule.ErrNoRules
	}

	for _, c := range store.Classes() {
		uc.logger.Debug("rule class ready", "class", c.Name, "rules", len(store.RulesFor(c.Name)))
	}
	uc.logger.Info("rule store built", "rules", store.Len())

	return store, nil
}

// Reload compiles the rules again and parks the result in ctrl, to be
// swapped in by the event loop. A failed reload keeps the active rules.
func (uc *LoadRulesUseCase) Reload(ctx context.Context, ctrl *control.Controller) error {
	store, err := uc.Execute(ctx)
	if err != nil {
		uc.logger.Error("rule reload failed, keeping active rules", "error", err)
		return err
	}
	ctrl.RequestReload(store)
	return nil
}
