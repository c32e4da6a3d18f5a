package event

import (
	"fmt"
	"sync"
	"time"
)

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityUrgent
)

// PriorityOf ranks the built-in events: state churn is dropped first, a
// failed config reload last.
func PriorityOf(name string, payload any) Priority {
	switch name {
	case EventStateChange:
		return PriorityLow
	case EventConfigReload:
		if evt, ok := payload.(ConfigReloadEvent); ok && evt.Err != nil {
			return PriorityUrgent
		}
		return PriorityNormal
	default:
		return PriorityNormal
	}
}

type Record struct {
	Name      string
	Payload   any
	Priority  Priority
	Timestamp time.Time
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s %+v", r.Timestamp.Format("15:04:05.000"), r.Name, r.Payload)
}

// Log keeps the most recent events up to a fixed capacity. When full, the
// oldest low-priority record makes room first.
type Log struct {
	mu       sync.Mutex
	records  []Record
	capacity int
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 100
	}
	return &Log{capacity: capacity}
}

// Attach records every named event published on bus.
func (l *Log) Attach(bus *Bus, names ...string) {
	for _, name := range names {
		name := name
		bus.Subscribe(name, func(raw any) {
			l.Push(name, raw, PriorityOf(name, raw))
		})
	}
}

func (l *Log) Push(name string, payload any, priority Priority) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		Name:      name,
		Payload:   payload,
		Priority:  priority,
		Timestamp: time.Now(),
	}

	if len(l.records) < l.capacity {
		l.records = append(l.records, rec)
		return
	}

	idx := l.findDropIndexLocked(priority)
	if idx >= 0 {
		l.records = append(l.records[:idx], l.records[idx+1:]...)
		l.records = append(l.records, rec)
	}
}

// Recent returns up to n of the newest records, oldest first.
func (l *Log) Recent(n int) []Record {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.records) {
		n = len(l.records)
	}
	out := make([]Record, n)
	copy(out, l.records[len(l.records)-n:])
	return out
}

func (l *Log) DrainAll() []Record {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, len(l.records))
	copy(out, l.records)
	l.records = l.records[:0]
	return out
}

func (l *Log) HasUrgent() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, rec := range l.records {
		if rec.Priority == PriorityUrgent {
			return true
		}
	}
	return false
}

func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// findDropIndexLocked picks the oldest record ranked at or below incoming.
func (l *Log) findDropIndexLocked(incoming Priority) int {
	for p := PriorityLow; p <= incoming; p++ {
		for i, rec := range l.records {
			if rec.Priority == p {
				return i
			}
		}
	}
	return -1
}
