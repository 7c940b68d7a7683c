package observability

import "testing"

func TestQueryMonitor_BudgetAdvisory(t *testing.T) {
	monitor := NewQueryMonitor(3)

	for i := 0; i < 2; i++ {
		monitor.Record("CustomerSearch")
	}
	monitor.Record("OrderResolver")

	report := monitor.Report()
	if report.Total != 3 {
		t.Fatalf("expected total 3, got %d", report.Total)
	}
	if report.OverBudget {
		t.Fatalf("at-budget must not flag over budget")
	}

	monitor.Record("CouponSearch")
	if report = monitor.Report(); !report.OverBudget {
		t.Fatalf("exceeding the budget must set the flag")
	}
}

func TestQueryMonitor_ZeroBudgetNeverFlags(t *testing.T) {
	monitor := NewQueryMonitor(0)
	for i := 0; i < 100; i++ {
		monitor.Record("CustomerSearch")
	}
	if monitor.Report().OverBudget {
		t.Fatalf("a zero budget disables the over-budget flag")
	}
}

func TestQueryReport_ComponentsSortedByCount(t *testing.T) {
	monitor := NewQueryMonitor(0)
	monitor.Record("b")
	monitor.Record("a")
	monitor.Record("a")
	monitor.Record("c")
	monitor.Record("c")

	components := monitor.Report().Components()
	if len(components) != 3 {
		t.Fatalf("expected 3 components, got %d", len(components))
	}
	if components[0] != "a" || components[1] != "c" || components[2] != "b" {
		t.Fatalf("unexpected order %v", components)
	}
}

func TestQueryMonitor_ResetAndNilSafety(t *testing.T) {
	monitor := NewQueryMonitor(1)
	monitor.Record("x")
	monitor.Reset()
	if monitor.Total() != 0 {
		t.Fatalf("reset must clear counters")
	}

	var nilMonitor *QueryMonitor
	nilMonitor.Record("x")
	if nilMonitor.Total() != 0 {
		t.Fatalf("nil monitor must be inert")
	}
}
