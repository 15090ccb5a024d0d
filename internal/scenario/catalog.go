package scenario

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// DefaultCaseID is used when the catalog is empty or its first case has no id.
const DefaultCaseID = "olp_001"

// Case is one raw case record. Field names drift between catalog
// revisions, so accessors resolve aliases instead of a fixed struct.
type Case map[string]any

// ID returns the case_id, or "" when the record has none.
func (c Case) ID() string {
	id, _ := c["case_id"].(string)
	return id
}

// Name returns the display name of the case.
func (c Case) Name() string {
	v, _ := firstPresent(c, "name", "ad", "title")
	s, _ := v.(string)
	return s
}

// Category returns the pathology category used to select guideline rules.
func (c Case) Category() string {
	v, _ := firstPresent(c, "category", "kategori")
	s, _ := v.(string)
	return s
}

// PatientBlock returns the patient profile under either naming convention.
func (c Case) PatientBlock() map[string]any {
	v, ok := firstPresent(c, "patient", "hasta_profili")
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// Catalog is the read-only list of case scenarios.
type Catalog struct {
	cases     []Case
	defaultID string
}

// NewCatalog builds a catalog from in-memory records.
func NewCatalog(cases ...Case) *Catalog {
	c := &Catalog{cases: cases, defaultID: DefaultCaseID}
	if len(cases) > 0 {
		if id := cases[0].ID(); id != "" {
			c.defaultID = id
		}
	}
	return c
}

// ParseCatalog decodes a catalog document: either a bare array of case
// records or an object with a "cases" array.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	var items []any
	switch t := doc.(type) {
	case []any:
		items = t
	case map[string]any:
		list, ok := t["cases"].([]any)
		if !ok {
			return nil, errors.New("parse catalog: expected an array or an object with a \"cases\" array")
		}
		items = list
	default:
		return nil, errors.New("parse catalog: expected an array or an object with a \"cases\" array")
	}

	cases := make([]Case, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			cases = append(cases, Case(m))
		}
	}
	return NewCatalog(cases...), nil
}

// LoadCatalog reads the catalog once. Read or parse failures are logged
// and yield an empty catalog.
func LoadCatalog(path string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("case catalog not readable", zap.String("path", path), zap.Error(err))
		return NewCatalog()
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		logger.Error("case catalog not loaded", zap.String("path", path), zap.Error(err))
		return NewCatalog()
	}
	logger.Info("case catalog loaded", zap.String("path", path), zap.Int("cases", cat.Len()))
	return cat
}

// Cases returns the records in catalog order.
func (c *Catalog) Cases() []Case {
	return c.cases
}

// Len returns the number of cases.
func (c *Catalog) Len() int {
	return len(c.cases)
}

// First returns the first case, if any.
func (c *Catalog) First() (Case, bool) {
	if len(c.cases) == 0 {
		return nil, false
	}
	return c.cases[0], true
}

// DefaultCaseID is the case new learners start on.
func (c *Catalog) DefaultCaseID() string {
	return c.defaultID
}

// Lookup finds a case by id.
func (c *Catalog) Lookup(caseID string) (Case, bool) {
	for _, cs := range c.cases {
		if cs.ID() == caseID {
			return cs, true
		}
	}
	return nil, false
}
