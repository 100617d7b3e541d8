package host

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
)

// ErrMutationRefused is returned by a MemDocument configured to refuse
// mutations, standing in for a host that lacks the edit capability.
var ErrMutationRefused = errors.New("host refused mutation")

// MemDocument is an in-memory Document used by tests and offline tooling.
// It counts metadata writes and dirty marks so callers can assert on the
// persistence protocol, and can be told to refuse mutations.
type MemDocument struct {
	mu    sync.Mutex
	id    string
	units []Unit
	meta  map[string]json.RawMessage

	refuse         bool
	metadataWrites int
	dirtyMarks     int
}

// NewMemDocument creates an in-memory document with the given cells.
func NewMemDocument(id string, units ...Unit) *MemDocument {
	return &MemDocument{
		id:    id,
		units: append([]Unit(nil), units...),
		meta:  make(map[string]json.RawMessage),
	}
}

func (d *MemDocument) ID() string { return d.id }

func (d *MemDocument) Units() ([]Unit, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Unit(nil), d.units...), nil
}

func (d *MemDocument) InsertUnit(pos int, kind UnitKind, source string, tags []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.refuse {
		return ErrMutationRefused
	}

	if pos < 0 {
		pos = 0
	}
	if pos > len(d.units) {
		pos = len(d.units)
	}

	id := make([]byte, 8)
	rand.Read(id)
	unit := Unit{
		ID:     hex.EncodeToString(id),
		Kind:   kind,
		Source: source,
		Tags:   append([]string(nil), tags...),
	}

	d.units = append(d.units, Unit{})
	copy(d.units[pos+1:], d.units[pos:])
	d.units[pos] = unit
	return nil
}

func (d *MemDocument) UpdateUnit(unitID, source string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.refuse {
		return ErrMutationRefused
	}

	for i := range d.units {
		if d.units[i].ID == unitID {
			d.units[i].Source = source
			return nil
		}
	}
	return errors.New("cell not found: " + unitID)
}

func (d *MemDocument) Metadata() MetadataStore { return (*memMeta)(d) }

func (d *MemDocument) MarkDirty() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dirtyMarks++
	return nil
}

// RefuseMutations makes subsequent inserts, updates, and metadata writes
// fail with ErrMutationRefused.
func (d *MemDocument) RefuseMutations(refuse bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refuse = refuse
}

// MetadataWrites returns how many metadata Set calls have been made.
func (d *MemDocument) MetadataWrites() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metadataWrites
}

// DirtyMarks returns how many times MarkDirty has been called.
func (d *MemDocument) DirtyMarks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirtyMarks
}

type memMeta MemDocument

func (m *memMeta) Get(key string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.meta[key]
	return raw, ok
}

func (m *memMeta) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refuse {
		return ErrMutationRefused
	}
	m.metadataWrites++
	m.meta[key] = raw
	return nil
}
