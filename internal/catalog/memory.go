package catalog

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-process Store used when no database is configured.
// Records are lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	idColumn string
	records  []Record
	nextID   int64
	failNext error
}

// NewMemoryStore creates an empty MemoryStore keyed by idColumn.
func NewMemoryStore(idColumn string) *MemoryStore {
	if idColumn == "" {
		idColumn = DefaultTable.IDColumn
	}
	return &MemoryStore{idColumn: idColumn, nextID: 1}
}

// FailNext makes the next store operation return err.
func (s *MemoryStore) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

func (s *MemoryStore) takeFailure(op string) error {
	if s.failNext == nil {
		return nil
	}
	err := s.failNext
	s.failNext = nil
	return &StorageError{Op: op, Err: err}
}

func (s *MemoryStore) QueryAll(ctx context.Context) ([]Record, error) {
	return s.QueryNew(ctx, 0)
}

func (s *MemoryStore) QueryNew(_ context.Context, sinceID int64) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("query"); err != nil {
		return nil, err
	}

	out := []Record{}
	for _, r := range s.records {
		if id, _ := RecordID(r, s.idColumn); id > sinceID {
			out = append(out, maps.Clone(r))
		}
	}
	return out, nil
}

// Insert assigns the next identity unless fields already carries one.
func (s *MemoryStore) Insert(_ context.Context, fields map[string]any) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("insert"); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, &StorageError{Op: "insert", Err: ErrEmptyProduct}
	}

	r := maps.Clone(fields)
	id, ok := RecordID(r, s.idColumn)
	if !ok {
		id = s.nextID
	}
	if id >= s.nextID {
		s.nextID = id + 1
	}
	r[s.idColumn] = id

	s.records = append(s.records, r)
	SortByID(s.records, s.idColumn)
	return maps.Clone(r), nil
}

func (s *MemoryStore) MaxID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure("max id"); err != nil {
		return 0, err
	}

	var max int64
	for _, r := range s.records {
		if id, _ := RecordID(r, s.idColumn); id > max {
			max = id
		}
	}
	return max, nil
}
