package scenario

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Store owns per-learner state. Reads and writes for one learner are
// serialized; different learners proceed independently.
type Store struct {
	catalog *Catalog
	backend Backend
	logger  *zap.Logger
	locks   keyedMutex
}

// NewStore creates a store over catalog. A nil backend means in-memory.
func NewStore(catalog *Catalog, backend Backend, logger *zap.Logger) *Store {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{catalog: catalog, backend: backend, logger: logger}
}

// Catalog returns the case catalog.
func (s *Store) Catalog() *Catalog {
	return s.catalog
}

// State returns the learner's state, creating it on first access.
func (s *Store) State(ctx context.Context, learnerID string) (LearnerState, error) {
	unlock := s.locks.lock(learnerID)
	defer unlock()

	st, err := s.loadOrInit(ctx, learnerID)
	if err != nil {
		return LearnerState{}, err
	}
	return st.Clone(), nil
}

// Update merges delta into the learner's state and returns the result.
// A nil delta leaves the state untouched.
func (s *Store) Update(ctx context.Context, learnerID string, delta map[string]any) (LearnerState, error) {
	return s.modify(ctx, learnerID, func(st *LearnerState) {
		st.Merge(delta)
	})
}

// SetCase switches the learner's active case. When the case changes and
// the catalog knows it, the patient block and case name are taken from
// the new case and any category override is dropped. Score and revealed
// findings carry over.
func (s *Store) SetCase(ctx context.Context, learnerID, caseID string) (LearnerState, error) {
	return s.modify(ctx, learnerID, func(st *LearnerState) {
		if st.CaseID == caseID {
			return
		}
		st.CaseID = caseID
		c, ok := s.catalog.Lookup(caseID)
		if !ok {
			return
		}
		st.Patient = nil
		if p := c.PatientBlock(); p != nil {
			st.Patient = cloneValue(p).(map[string]any)
		}
		st.CaseName = c.Name()
		st.Category = ""
	})
}

// Reset forgets the learner; the next access starts from scratch.
func (s *Store) Reset(ctx context.Context, learnerID string) error {
	unlock := s.locks.lock(learnerID)
	defer unlock()
	if err := s.backend.Delete(ctx, learnerID); err != nil {
		return fmt.Errorf("reset learner %s: %w", learnerID, err)
	}
	return nil
}

// CaseByID looks up a case, logging a warning when it is missing.
func (s *Store) CaseByID(caseID string) (Case, bool) {
	c, ok := s.catalog.Lookup(caseID)
	if !ok {
		s.logger.Warn("case not found", zap.String("case_id", caseID))
	}
	return c, ok
}

// Persona returns the roleplay instruction for a case, or GenericPersona
// when the case is unknown.
func (s *Store) Persona(caseID string) string {
	c, ok := s.CaseByID(caseID)
	if !ok {
		return GenericPersona
	}
	return Persona(c)
}

// Category resolves the guideline category for a learner state: the
// state's own category, then the active case's, then "GENERAL".
func (s *Store) Category(st LearnerState) string {
	if st.Category != "" {
		return st.Category
	}
	if c, ok := s.catalog.Lookup(st.CaseID); ok {
		if cat := c.Category(); cat != "" {
			return cat
		}
	}
	return "GENERAL"
}

func (s *Store) modify(ctx context.Context, learnerID string, fn func(*LearnerState)) (LearnerState, error) {
	unlock := s.locks.lock(learnerID)
	defer unlock()

	if ab, ok := s.backend.(AtomicBackend); ok {
		st, err := ab.Modify(ctx, learnerID, func(st LearnerState, exists bool) (LearnerState, error) {
			if !exists {
				st = s.initialState()
				s.logger.Debug("learner state created",
					zap.String("learner_id", learnerID),
					zap.String("case_id", st.CaseID))
			}
			fn(&st)
			return st, nil
		})
		if err != nil {
			return LearnerState{}, fmt.Errorf("update learner %s: %w", learnerID, err)
		}
		return st.Clone(), nil
	}

	st, err := s.loadOrInit(ctx, learnerID)
	if err != nil {
		return LearnerState{}, err
	}
	fn(&st)
	if err := s.backend.Save(ctx, learnerID, st); err != nil {
		return LearnerState{}, fmt.Errorf("save learner %s: %w", learnerID, err)
	}
	return st.Clone(), nil
}

// loadOrInit must be called with the learner's lock held.
func (s *Store) loadOrInit(ctx context.Context, learnerID string) (LearnerState, error) {
	st, ok, err := s.backend.Load(ctx, learnerID)
	if err != nil {
		return LearnerState{}, fmt.Errorf("load learner %s: %w", learnerID, err)
	}
	if ok {
		return st, nil
	}

	st = s.initialState()
	if err := s.backend.Save(ctx, learnerID, st); err != nil {
		return LearnerState{}, fmt.Errorf("save learner %s: %w", learnerID, err)
	}
	s.logger.Debug("learner state created",
		zap.String("learner_id", learnerID),
		zap.String("case_id", st.CaseID))
	return st, nil
}

func (s *Store) initialState() LearnerState {
	st := LearnerState{CaseID: s.catalog.DefaultCaseID()}
	first, ok := s.catalog.First()
	if !ok {
		return st
	}
	if p := first.PatientBlock(); p != nil {
		st.Patient = cloneValue(p).(map[string]any)
	}
	st.CaseName = first.Name()
	return st
}

// keyedMutex hands out one mutex per key and drops it once no goroutine
// holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
