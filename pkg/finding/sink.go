package finding

import "sync"

// A Sink receives findings as the checks emit them. Implementations must
// be safe for concurrent Append calls.
type Sink interface {
	Append(Finding) error
	Close() error
}

// MemorySink accumulates findings in memory.
type MemorySink struct {
	mu        sync.Mutex
	findings  []Finding
	located   int
	unlocated int
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Append(f Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = append(s.findings, f)
	if f.Located() {
		s.located++
	} else if f.Unlocated {
		s.unlocated++
	}
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Findings returns a snapshot of everything appended so far.
func (s *MemorySink) Findings() []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Finding(nil), s.findings...)
}

// ByCode returns the appended findings carrying the given code.
func (s *MemorySink) ByCode(c Code) []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Finding
	for _, f := range s.findings {
		if f.Code == c {
			out = append(out, f)
		}
	}
	return out
}

func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.findings)
}

// Counts returns how many findings resolved to a position and how many
// ended up explicitly unlocated.
func (s *MemorySink) Counts() (located, unlocated int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.located, s.unlocated
}
