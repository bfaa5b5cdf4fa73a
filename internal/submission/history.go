package submission

import "sync"

// History is the append-only in-memory submission store. Records go in and
// come out as value copies; callers can never mutate stored state through
// an alias.
type History struct {
	mu      sync.RWMutex
	records []Record
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.clone())
}

// Find returns a copy of the record with the given document ID.
func (h *History) Find(documentID string) (Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.records {
		if r.DocumentID == documentID {
			return r.clone(), true
		}
	}
	return Record{}, false
}

// Apply runs mutate on the stored record under the write lock. The mutation
// is discarded when mutate returns an error.
func (h *History) Apply(documentID string, mutate func(*Record) error) (Record, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.records {
		if h.records[i].DocumentID != documentID {
			continue
		}
		updated := h.records[i].clone()
		if err := mutate(&updated); err != nil {
			return Record{}, true, err
		}
		h.records[i] = updated
		return updated.clone(), true, nil
	}
	return Record{}, false, nil
}

// All returns copies of every record in append order.
func (h *History) All() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Record, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r.clone())
	}
	return out
}

// Where returns copies of the records matching keep.
func (h *History) Where(keep func(Record) bool) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Record
	for _, r := range h.records {
		if keep(r) {
			out = append(out, r.clone())
		}
	}
	return out
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
