package control_test

import (
	"slices"
	"sync"
	"testing"

	"github.com/sophialabs/lsvstats/internal/domain/control"
	"github.com/sophialabs/lsvstats/internal/domain/match"
)

func TestController_IdleCheckIsNoop(t *testing.T) {
	c := control.New()
	if d := c.Check(); d.Flush || d.Shutdown || d.Reload != nil {
		t.Errorf("idle Check() = %+v", d)
	}
}

func TestController_FlushReturnsToIdle(t *testing.T) {
	c := control.New()
	c.RequestFlush(control.ReasonSignal)

	if c.State() != control.FlushRequested {
		t.Fatalf("State() = %v, want flush_requested", c.State())
	}
	d := c.Check()
	if !d.Flush || d.Shutdown || d.Reason != control.ReasonSignal {
		t.Errorf("Check() = %+v", d)
	}
	if c.State() != control.Idle {
		t.Errorf("State() = %v, want idle", c.State())
	}
	if d := c.Check(); d.Flush {
		t.Error("flush consumed twice")
	}
}

func TestController_FirstFlushReasonWins(t *testing.T) {
	c := control.New()
	c.RequestFlush(control.ReasonOverflow)
	c.RequestFlush(control.ReasonInterval)

	if d := c.Check(); d.Reason != control.ReasonOverflow {
		t.Errorf("Reason = %q, want overflow", d.Reason)
	}
}

func TestController_ShutdownIsTerminal(t *testing.T) {
	c := control.New()
	c.RequestFlush(control.ReasonSignal)
	c.RequestShutdown()
	c.RequestFlush(control.ReasonSignal)

	for i := 0; i < 2; i++ {
		d := c.Check()
		if !d.Shutdown || !d.Flush {
			t.Errorf("Check() = %+v, want shutdown with flush", d)
		}
	}
	if c.State() != control.ShutdownRequested {
		t.Errorf("State() = %v", c.State())
	}
}

func TestController_Reload(t *testing.T) {
	c := control.New()
	rules, err := match.NewRuleStore(nil)
	if err != nil {
		t.Fatalf("NewRuleStore failed: %v", err)
	}
	c.RequestReload(rules)

	d := c.Check()
	if d.Reload != rules || !d.Flush || d.Reason != control.ReasonReload {
		t.Errorf("Check() = %+v", d)
	}
	if d := c.Check(); d.Reload != nil {
		t.Error("reload consumed twice")
	}
}

func TestController_WakeDoesNotBlock(t *testing.T) {
	c := control.New()
	for i := 0; i < 10; i++ {
		c.RequestFlush(control.ReasonSignal)
	}
	select {
	case <-c.Wake():
	default:
		t.Fatal("expected a pending wake-up")
	}
}

func TestController_ConcurrentRequests(t *testing.T) {
	c := control.New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.RequestFlush(control.ReasonSignal)
			}
		}()
	}
	wg.Wait()

	if d := c.Check(); !d.Flush {
		t.Error("expected a pending flush")
	}
}

func TestController_FlushDecisionAlwaysCarriesItsReason(t *testing.T) {
	c := control.New()
	reasons := []string{control.ReasonSignal, control.ReasonInterval, control.ReasonOverflow}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for _, reason := range reasons {
		reason := reason
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					c.RequestFlush(reason)
				}
			}
		}()
	}

	for i := 0; i < 10000; i++ {
		d := c.Check()
		if d.Flush && !slices.Contains(reasons, d.Reason) {
			t.Errorf("flush decision with reason %q", d.Reason)
			break
		}
	}
	close(stop)
	wg.Wait()
}
