// Package catalog holds the static unit, ability and status-effect
// definitions a battle is resolved against. Catalogs are read-only once built
// and safe for concurrent readers.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownUnit reports a unit id missing from the catalog.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrDuplicateID reports two definitions sharing an id.
	ErrDuplicateID = errors.New("duplicate id")
)

// Catalog is the lookup surface the combat engine depends on.
type Catalog interface {
	Unit(id string) (UnitDefinition, bool)
	Ability(id string) (AbilityDefinition, bool)
	StatusEffect(id string) (StatusEffectDefinition, bool)
	// ExpandTags returns tags plus every ancestor implied by the hierarchy.
	ExpandTags(tags []string) map[string]bool
}

// Memory is an in-memory Catalog.
type Memory struct {
	units     map[string]UnitDefinition
	abilities map[string]AbilityDefinition
	effects   map[string]StatusEffectDefinition
	parents   map[string][]string
}

// New indexes doc. Duplicate ids are rejected.
func New(doc Document) (*Memory, error) {
	m := &Memory{
		units:     make(map[string]UnitDefinition, len(doc.Units)),
		abilities: make(map[string]AbilityDefinition, len(doc.Abilities)),
		effects:   make(map[string]StatusEffectDefinition, len(doc.StatusEffects)),
		parents:   make(map[string][]string, len(doc.Tags)),
	}
	for _, u := range doc.Units {
		if _, ok := m.units[u.ID]; ok {
			return nil, fmt.Errorf("unit %q: %w", u.ID, ErrDuplicateID)
		}
		m.units[u.ID] = u
	}
	for _, a := range doc.Abilities {
		if _, ok := m.abilities[a.ID]; ok {
			return nil, fmt.Errorf("ability %q: %w", a.ID, ErrDuplicateID)
		}
		m.abilities[a.ID] = a
	}
	for _, e := range doc.StatusEffects {
		if _, ok := m.effects[e.ID]; ok {
			return nil, fmt.Errorf("status effect %q: %w", e.ID, ErrDuplicateID)
		}
		m.effects[e.ID] = e
	}
	for tag, parents := range doc.Tags {
		m.parents[tag] = append([]string(nil), parents...)
	}
	return m, nil
}

func (m *Memory) Unit(id string) (UnitDefinition, bool) {
	u, ok := m.units[id]
	return u, ok
}

func (m *Memory) Ability(id string) (AbilityDefinition, bool) {
	a, ok := m.abilities[id]
	return a, ok
}

func (m *Memory) StatusEffect(id string) (StatusEffectDefinition, bool) {
	e, ok := m.effects[id]
	return e, ok
}

// ExpandTags walks the hierarchy breadth first. Cycles are tolerated.
func (m *Memory) ExpandTags(tags []string) map[string]bool {
	out := make(map[string]bool, len(tags))
	queue := append([]string(nil), tags...)
	for len(queue) > 0 {
		tag := queue[0]
		queue = queue[1:]
		if out[tag] {
			continue
		}
		out[tag] = true
		queue = append(queue, m.parents[tag]...)
	}
	return out
}

// UnitIDs lists every unit id in sorted order.
func (m *Memory) UnitIDs() []string {
	ids := make([]string, 0, len(m.units))
	for id := range m.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Merge concatenates documents. Tag parents for the same tag are unioned.
func Merge(docs ...Document) Document {
	var out Document
	for _, d := range docs {
		out.Units = append(out.Units, d.Units...)
		out.Abilities = append(out.Abilities, d.Abilities...)
		out.StatusEffects = append(out.StatusEffects, d.StatusEffects...)
		for tag, parents := range d.Tags {
			if out.Tags == nil {
				out.Tags = map[string][]string{}
			}
			out.Tags[tag] = append(out.Tags[tag], parents...)
		}
	}
	return out
}

func loadYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Parse decodes a single YAML document.
func Parse(data []byte) (*Memory, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc)
}

// LoadFile reads one catalog file.
func LoadFile(path string) (*Memory, error) {
	var doc Document
	if err := loadYAML(path, &doc); err != nil {
		return nil, err
	}
	return New(doc)
}

// LoadDir reads every .yaml and .yml file in dir, in name order, and merges
// them into one catalog.
func LoadDir(dir string) (*Memory, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var docs []Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		var doc Document
		if err := loadYAML(filepath.Join(dir, e.Name()), &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("no catalog files in %s", dir)
	}
	return New(Merge(docs...))
}
