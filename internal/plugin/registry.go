package plugin

import "sort"

// Ordinals are compile-time plugin identities (spec.md §3: "a stable
// declaration order... is a compile-time property that lookups rely on").
const (
	OrdinalMain = iota
	OrdinalStaticFiles
	OrdinalProxy
	OrdinalGoAdaptor
)

// LoadFunc inspects a scope's already-decoded plugin-config section
// (scope[name]) plus the ConfigList built so far (so a later plugin, e.g.
// the Go adaptor, can reach back into an earlier one's typed config to
// register itself, per spec.md §4.6) and returns a Plugin, or nil if the
// plugin is inactive for this scope.
type LoadFunc func(scope map[string]interface{}, soFar ConfigList) (*Plugin, error)

// Loader is one entry in the compile-time plugin registry.
type Loader struct {
	Ordinal  int
	Name     string
	Requires int // ordinal of a required predecessor, or -1
	Load     LoadFunc
}

// NoRequirement marks a Loader with no "require X" dependency.
const NoRequirement = -1

// registry holds the registered loaders in whatever order each plugin
// package's init() ran, which is Go's package-import order, not ordinal
// order. Registry and Build always consult it through ordinalSorted so
// dispatch order depends on the declared Ordinal values alone, never on
// which package happened to blank-import first.
var registry []Loader

// Register appends l to the compile-time plugin registry. Called from each
// plugin package's init().
func Register(l Loader) {
	registry = append(registry, l)
}

// ordinalSorted returns a copy of registry sorted by Ordinal ascending, the
// declaration order spec.md §3 means by "a stable declaration order."
func ordinalSorted() []Loader {
	out := make([]Loader, len(registry))
	copy(out, registry)
	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	return out
}

// Registry returns the registered loaders in ordinal order.
func Registry() []Loader {
	return ordinalSorted()
}

// Build runs every registered loader against scope in ordinal order,
// inserting a plugin marked "require X" immediately after its required
// predecessor in the resulting list (spec.md §4.1 step 4), and returns the
// resulting ConfigList. The main plugin is mandatory; Build returns an error
// if it is absent.
func Build(scope map[string]interface{}) (ConfigList, error) {
	var list ConfigList
	for _, l := range ordinalSorted() {
		p, err := l.Load(scope, list)
		if err != nil {
			return nil, err
		}
		if p == nil {
			continue
		}
		p.Ordinal = l.Ordinal
		p.Name = l.Name

		if l.Requires == NoRequirement {
			list = append(list, p)
			continue
		}

		inserted := false
		for i, existing := range list {
			if existing.Ordinal == l.Requires {
				list = append(list, nil)
				copy(list[i+2:], list[i+1:])
				list[i+1] = p
				inserted = true
				break
			}
		}
		if !inserted {
			list = append(list, p)
		}
	}

	for _, p := range list {
		if p.Ordinal == OrdinalMain {
			return list, nil
		}
	}
	return nil, errMainPluginMissing
}

var errMainPluginMissing = registryError("jequi: main plugin did not load for scope")

type registryError string

func (e registryError) Error() string { return string(e) }
