// Package partition describes how a model graph is cut into deployable
// sub-graphs. The resolver only describes the cut; executing it is the
// exporter's job and the runtime formats involved are backend-specific.
package partition

import (
	"sort"
	"sync"
)

// Partition names one deployable sub-graph, bounded by the tensor names
// it consumes (Start) and produces (End).
type Partition struct {
	Name     string   `json:"name"`
	Start    []string `json:"start"`
	End      []string `json:"end"`
	SaveFile string   `json:"save_file"`
}

// Spec is a declarative description of a full partitioning scheme.
type Spec struct {
	Type       string      `json:"type"`
	Partitions []Partition `json:"partitions"`
}

// Clone returns a deep copy so callers can never mutate the registered
// tables through a resolved spec.
func (s Spec) Clone() Spec {
	out := Spec{Type: s.Type, Partitions: make([]Partition, len(s.Partitions))}
	for i, p := range s.Partitions {
		out.Partitions[i] = Partition{
			Name:     p.Name,
			Start:    append([]string(nil), p.Start...),
			End:      append([]string(nil), p.End...),
			SaveFile: p.SaveFile,
		}
	}
	return out
}

var (
	mu     sync.RWMutex
	tables = map[string]map[string]Spec{}
)

// Register binds a partition scheme under (codebase, partitionType).
// Codebase plugins register their schemes during startup, before any
// concurrent Resolve calls. Rebinding an existing scheme fails.
func Register(codebase, partitionType string, spec Spec) error {
	mu.Lock()
	defer mu.Unlock()
	byType, ok := tables[codebase]
	if !ok {
		byType = map[string]Spec{}
		tables[codebase] = byType
	}
	if _, dup := byType[partitionType]; dup {
		return duplicateSchemeError{codebase: codebase, partitionType: partitionType}
	}
	spec.Type = partitionType
	byType[partitionType] = spec.Clone()
	return nil
}

// MustRegister is Register for startup paths where a duplicate is a
// programming error.
func MustRegister(codebase, partitionType string, spec Spec) {
	if err := Register(codebase, partitionType, spec); err != nil {
		panic(err)
	}
}

// Resolve returns the scheme registered under (codebase, partitionType).
// Pure lookup: identical arguments yield structurally identical specs.
func Resolve(codebase, partitionType string) (Spec, error) {
	mu.RLock()
	defer mu.RUnlock()
	if byType, ok := tables[codebase]; ok {
		if spec, ok := byType[partitionType]; ok {
			return spec.Clone(), nil
		}
	}
	return Spec{}, unknownPartitionTypeError{codebase: codebase, partitionType: partitionType}
}

// Types lists the partition types registered for a codebase, sorted.
func Types(codebase string) []string {
	mu.RLock()
	defer mu.RUnlock()
	var out []string
	for t := range tables[codebase] {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
