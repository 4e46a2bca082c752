package observability

import "testing"

func TestMetricsSnapshotCopiesCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/feedback", "POST", 201, 0)
	m.RecordRequest("/feedback", "POST", 201, 0)
	m.RecordError("/feedback", "POST", "VALIDATION_FAILED")
	m.RecordNotification("confirmation", true)
	m.RecordNotification("confirmation", false)
	m.RecordNotification("admin_notify", true)

	snap := m.Snapshot()
	if snap.Requests["/feedback|POST|201"] != 2 {
		t.Fatalf("requests = %v", snap.Requests)
	}
	if snap.Errors["/feedback|POST|VALIDATION_FAILED"] != 1 {
		t.Fatalf("errors = %v", snap.Errors)
	}
	if got := snap.Notifications["confirmation"]; got.Delivered != 1 || got.Failed != 1 {
		t.Fatalf("confirmation counts = %+v", got)
	}
	kinds := snap.NotificationKinds()
	if len(kinds) != 2 || kinds[0] != "admin_notify" {
		t.Fatalf("kinds = %v", kinds)
	}

	m.RecordNotification("confirmation", true)
	if snap.Notifications["confirmation"].Delivered != 1 {
		t.Fatalf("snapshot should not change after further recording")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "X")
	m.RecordNotification("confirmation", true)
}
