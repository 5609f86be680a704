package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/sophialabs/lsvstats/internal/domain/aggregate"
	"github.com/sophialabs/lsvstats/internal/domain/control"
	"github.com/sophialabs/lsvstats/internal/domain/event"
	"github.com/sophialabs/lsvstats/internal/domain/match"
	"github.com/sophialabs/lsvstats/internal/domain/rule"
	"github.com/sophialabs/lsvstats/internal/domain/sample"
	"github.com/sophialabs/lsvstats/internal/infrastructure/services"
	"github.com/sophialabs/lsvstats/internal/testutil"
)

type mockRepo struct {
	set *rule.Set
	err error
}

func (r *mockRepo) Load(context.Context) (*rule.Set, error) {
	return r.set, r.err
}

func def(name, pattern string) rule.Definition {
	return rule.Definition{Name: name, Class: rule.ClassFromName(name), Pattern: pattern}
}

func compileRules(t *testing.T, defs ...rule.Definition) *match.RuleStore {
	t.Helper()
	store, _, err := services.NewRuleCompiler(&testutil.NoopLogger{}).Compile(&rule.Set{Rules: defs})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return store
}

func newEngine(t *testing.T, rules *match.RuleStore, ctrl *control.Controller, samples sample.Config) *aggregate.Engine {
	t.Helper()
	e, err := aggregate.New(aggregate.Params{
		Rules:      rules,
		Controller: ctrl,
		Samples:    samples,
		MaxSlots:   64,
	})
	if err != nil {
		t.Fatalf("aggregate.New failed: %v", err)
	}
	return e
}

// request returns the client-side events of one request on slot.
func request(slot uint32, url, status, cache, ttfb string) []event.Event {
	c := event.SideClient
	return []event.Event{
		{Slot: slot, Side: c, Tag: event.TagMethod, Payload: "GET"},
		{Slot: slot, Side: c, Tag: event.TagURL, Payload: url},
		{Slot: slot, Side: c, Tag: event.TagCacheOutcome, Payload: cache + " deliver"},
		{Slot: slot, Side: c, Tag: event.TagStatus, Payload: status},
		{Slot: slot, Side: c, Tag: event.TagRequestEnd, Payload: "1 1.0 2.0 0.00001 " + ttfb + " 0.5"},
	}
}

// blockingSource emits its events then waits for cancellation.
type blockingSource struct {
	events []event.Event
}

func (s *blockingSource) Run(ctx context.Context, out chan<- event.Event) error {
	for _, ev := range s.events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
