package antispam

import (
	"time"
)

const (
	nameRetention       = 28 * 24 * time.Hour
	repeatNameRetention = 90 * 24 * time.Hour
)

// NameEncounter records how often and when a banned display name was seen.
type NameEncounter struct {
	Count     int   `json:"count"`
	FirstSeen int64 `json:"firstSeen"`
	LastSeen  int64 `json:"lastSeen"`
}

// NameRecallTable tracks display names of previously banned accounts, so a
// recurring spam identity can be rejected at join time before it posts
// anything. Entries age out after 28 days, or 90 days for names seen more
// than once (returning spammers are tracked longer).
type NameRecallTable map[string]*NameEncounter

func NewNameRecallTable() NameRecallTable {
	return make(NameRecallTable)
}

// Record notes an encounter with a spam display name.
func (t NameRecallTable) Record(name string) {
	now := nowUnix()
	e, ok := t[name]
	if !ok {
		e = &NameEncounter{FirstSeen: now}
		t[name] = e
	}
	e.Count++
	e.LastSeen = now
}

// Recall reports whether the name was seen before. A hit also counts as a new
// encounter, extending the entry's retention.
func (t NameRecallTable) Recall(name string) bool {
	e, ok := t[name]
	if !ok {
		return false
	}
	e.Count++
	e.LastSeen = nowUnix()
	return true
}

// Prune drops stale entries per the retention rule.
func (t NameRecallTable) Prune(now time.Time) []string {
	var removed []string
	for name, e := range t {
		age := now.Sub(time.Unix(e.LastSeen, 0))
		if age <= nameRetention {
			continue
		}
		if e.Count > 1 && age <= repeatNameRetention {
			continue
		}
		delete(t, name)
		removed = append(removed, name)
	}
	return removed
}
