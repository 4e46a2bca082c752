package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	startedAt     time.Time
	requestCount  map[string]int64
	errorCount    map[string]int64
	notifications map[string]*NotificationCounts
}

// NotificationCounts tallies delivery outcomes for one notification kind.
type NotificationCounts struct {
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	UptimeSeconds int64                         `json:"uptime_seconds"`
	Requests      map[string]int64              `json:"requests"`
	Errors        map[string]int64              `json:"errors"`
	Notifications map[string]NotificationCounts `json:"notifications"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		startedAt:     time.Now(),
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		notifications: make(map[string]*NotificationCounts),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordNotification counts one delivery attempt for kind.
func (m *Metrics) RecordNotification(kind string, delivered bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	counts, ok := m.notifications[kind]
	if !ok {
		counts = &NotificationCounts{}
		m.notifications[kind] = counts
	}
	if delivered {
		counts.Delivered++
	} else {
		counts.Failed++
	}
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
		Requests:      make(map[string]int64, len(m.requestCount)),
		Errors:        make(map[string]int64, len(m.errorCount)),
		Notifications: make(map[string]NotificationCounts, len(m.notifications)),
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.notifications {
		snap.Notifications[k] = *v
	}
	return snap
}

// NotificationKinds lists the kinds seen so far in sorted order.
func (s Snapshot) NotificationKinds() []string {
	kinds := make([]string, 0, len(s.Notifications))
	for k := range s.Notifications {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
