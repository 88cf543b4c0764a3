package profiler

import (
	"testing"
	"time"

	"github.com/pathsight/pathsight/pkg/types"
)

func TestSystemEventStats(t *testing.T) {
	events := []types.Event{
		evt("u1", 0, "Session Started"),
		evt("u1", 1*time.Minute, "search"),
		evt("u1", 2*time.Minute, "Push Sent"),
		evt("u1", 3*time.Minute, "Push Sent"),
		evt("u1", 4*time.Minute, "Push Delivered"),
		evt("u1", 5*time.Minute, "Push Click"),
		evt("u2", 6*time.Minute, "App Installed"),
		evt("u2", 7*time.Minute, "App Uninstalled"),
		evt("u2", 8*time.Minute, "App Installed"),
	}

	stats := systemEventStats(events)

	// Only configured markers land in Counts; the push funnel is matched by
	// name regardless of category.
	if stats.Counts["Session Started"] != 1 {
		t.Errorf("counts = %+v", stats.Counts)
	}
	if _, ok := stats.Counts["Push Sent"]; ok {
		t.Errorf("Push Sent is not a marker: %+v", stats.Counts)
	}

	if stats.Push == nil {
		t.Fatal("push stats missing")
	}
	if stats.Push.TotalSent != 2 {
		t.Errorf("sent = %d, want 2", stats.Push.TotalSent)
	}
	if stats.Push.DeliveryRate != 0.5 {
		t.Errorf("delivery rate = %v, want 0.5", stats.Push.DeliveryRate)
	}
	if stats.Push.ClickRate != 1.0 {
		t.Errorf("click rate = %v, want 1.0", stats.Push.ClickRate)
	}
	if stats.Push.FailureRate != 0 {
		t.Errorf("failure rate = %v, want 0", stats.Push.FailureRate)
	}
	if stats.Push.Breakdown["Push Sent"] != 2 || stats.Push.Breakdown["Push Click"] != 1 {
		t.Errorf("breakdown = %+v", stats.Push.Breakdown)
	}

	if stats.Lifecycle == nil {
		t.Fatal("lifecycle stats missing")
	}
	if stats.Lifecycle.Installs != 2 || stats.Lifecycle.Uninstalls != 1 {
		t.Errorf("lifecycle = %+v", stats.Lifecycle)
	}
	if stats.Lifecycle.ChurnRate != 0.5 {
		t.Errorf("churn = %v, want 0.5", stats.Lifecycle.ChurnRate)
	}
}

func TestPushStatsWithoutSends(t *testing.T) {
	ps := pushStats(map[string]int64{"Push Delivered": 3})
	if ps == nil {
		t.Fatal("expected breakdown even without sends")
	}
	if ps.TotalSent != 0 || ps.DeliveryRate != 0 || ps.ClickRate != 0 {
		t.Errorf("rates should stay zero: %+v", ps)
	}
	if ps.Breakdown["Push Delivered"] != 3 {
		t.Errorf("breakdown = %+v", ps.Breakdown)
	}
}

func TestPushStatsAbsent(t *testing.T) {
	if ps := pushStats(map[string]int64{"search": 10}); ps != nil {
		t.Errorf("unexpected push stats: %+v", ps)
	}
}

func TestLifecycleStatsAbsent(t *testing.T) {
	if ls := lifecycleStats(map[string]int64{"search": 10}); ls != nil {
		t.Errorf("unexpected lifecycle stats: %+v", ls)
	}
}

func TestLifecycleUninstallOnly(t *testing.T) {
	ls := lifecycleStats(map[string]int64{"App Uninstalled": 4})
	if ls == nil {
		t.Fatal("lifecycle stats missing")
	}
	if ls.Uninstalls != 4 || ls.ChurnRate != 0 {
		t.Errorf("lifecycle = %+v", ls)
	}
}
