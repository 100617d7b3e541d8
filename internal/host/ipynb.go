package host

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Notebook is a Document backed by an nbformat-4 .ipynb file on disk.
//
// Cells are held as raw JSON objects so fields this tracker does not care
// about (outputs, attachments, toolchain metadata) survive a rewrite
// untouched. MarkDirty persists the file; there is no other save path.
type Notebook struct {
	mu    sync.Mutex
	path  string
	top   map[string]json.RawMessage
	cells []map[string]json.RawMessage
	meta  map[string]json.RawMessage
}

// OpenNotebook reads and parses an .ipynb file.
func OpenNotebook(path string) (*Notebook, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parse notebook %s: %w", path, err)
	}

	n := &Notebook{path: abs, top: top, meta: make(map[string]json.RawMessage)}

	if raw, ok := top["cells"]; ok {
		if err := json.Unmarshal(raw, &n.cells); err != nil {
			return nil, fmt.Errorf("parse notebook cells: %w", err)
		}
	}
	if raw, ok := top["metadata"]; ok {
		if err := json.Unmarshal(raw, &n.meta); err != nil {
			return nil, fmt.Errorf("parse notebook metadata: %w", err)
		}
	}

	return n, nil
}

// ID returns the absolute file path, the stable identity for this session.
func (n *Notebook) ID() string {
	return n.path
}

// Units returns the notebook's cells in order. Cells without an id (pre
// nbformat-4.5 files) get a positional fallback id, stable for the session.
func (n *Notebook) Units() ([]Unit, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	units := make([]Unit, 0, len(n.cells))
	for i, cell := range n.cells {
		units = append(units, Unit{
			ID:     cellID(cell, i),
			Kind:   cellKind(cell),
			Source: cellSource(cell),
			Tags:   cellTags(cell),
		})
	}
	return units, nil
}

// InsertUnit inserts a new cell at pos, clamped to the cell range.
func (n *Notebook) InsertUnit(pos int, kind UnitKind, source string, tags []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	cell, err := newCell(kind, source, tags)
	if err != nil {
		return err
	}

	if pos < 0 {
		pos = 0
	}
	if pos > len(n.cells) {
		pos = len(n.cells)
	}

	n.cells = append(n.cells, nil)
	copy(n.cells[pos+1:], n.cells[pos:])
	n.cells[pos] = cell
	return nil
}

// UpdateUnit replaces the source of the cell with the given id.
func (n *Notebook) UpdateUnit(unitID, source string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, cell := range n.cells {
		if cellID(cell, i) != unitID {
			continue
		}
		raw, err := json.Marshal(sourceLines(source))
		if err != nil {
			return err
		}
		cell["source"] = raw
		return nil
	}
	return fmt.Errorf("cell not found: %s", unitID)
}

// Metadata returns the notebook-level metadata bag.
func (n *Notebook) Metadata() MetadataStore {
	return (*notebookMeta)(n)
}

// MarkDirty writes the notebook back to disk atomically.
func (n *Notebook) MarkDirty() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	cellsRaw, err := json.Marshal(n.cells)
	if err != nil {
		return err
	}
	metaRaw, err := json.Marshal(n.meta)
	if err != nil {
		return err
	}
	n.top["cells"] = cellsRaw
	n.top["metadata"] = metaRaw

	data, err := json.MarshalIndent(n.top, "", " ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp := n.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, n.path)
}

// notebookMeta adapts the notebook's plain keyed metadata bag to the
// MetadataStore capability.
type notebookMeta Notebook

func (m *notebookMeta) Get(key string) (json.RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.meta[key]
	return raw, ok
}

func (m *notebookMeta) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = raw
	return nil
}

func cellID(cell map[string]json.RawMessage, index int) string {
	var id string
	if raw, ok := cell["id"]; ok {
		_ = json.Unmarshal(raw, &id)
	}
	if id == "" {
		id = fmt.Sprintf("cell-%d", index)
	}
	return id
}

func cellKind(cell map[string]json.RawMessage) UnitKind {
	var kind string
	if raw, ok := cell["cell_type"]; ok {
		_ = json.Unmarshal(raw, &kind)
	}
	switch kind {
	case "code":
		return UnitCode
	case "markdown":
		return UnitMarkdown
	default:
		return UnitRaw
	}
}

// cellSource joins the nbformat source, which may be a string or a list of
// line strings.
func cellSource(cell map[string]json.RawMessage) string {
	raw, ok := cell["source"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "")
	}
	return ""
}

func cellTags(cell map[string]json.RawMessage) []string {
	metaRaw, ok := cell["metadata"]
	if !ok {
		return nil
	}
	var meta struct {
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil
	}
	return meta.Tags
}

func newCell(kind UnitKind, source string, tags []string) (map[string]json.RawMessage, error) {
	cell := make(map[string]json.RawMessage)

	id := make([]byte, 8)
	rand.Read(id)

	fields := map[string]any{
		"id":        hex.EncodeToString(id),
		"cell_type": string(kind),
		"source":    sourceLines(source),
		"metadata":  map[string]any{"tags": tags},
	}
	if kind == UnitCode {
		fields["outputs"] = []any{}
		fields["execution_count"] = nil
	}

	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		cell[k] = raw
	}
	return cell, nil
}

// sourceLines splits source into nbformat line form: every line keeps its
// trailing newline except the last.
func sourceLines(source string) []string {
	if source == "" {
		return []string{}
	}
	lines := strings.SplitAfter(source, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
