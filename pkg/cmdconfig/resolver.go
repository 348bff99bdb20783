// Package cmdconfig resolves the effective option values for one command
// invocation from layered sources.
//
// Layers, lowest to highest precedence:
//
//	built-in default -> last-run state -> project file section -> invocation arguments
//
// Each layer fully replaces lower layers for a key; there is no deep merge.
package cmdconfig

import "sort"

// Provider is one configuration layer.
type Provider interface {
	// Name identifies the layer in diagnostics ("default", "state", "file", "args").
	Name() string

	// Lookup returns the layer's value for key. ok is false when the layer
	// leaves the key unset.
	Lookup(key string) (value any, ok bool)
}

// MapProvider serves values from a map. A nil value counts as unset.
type MapProvider struct {
	Label  string
	Values map[string]any
}

func (p MapProvider) Name() string { return p.Label }

func (p MapProvider) Lookup(key string) (any, bool) {
	v, ok := p.Values[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// LookupFunc adapts a function into a Provider.
type LookupFunc struct {
	Label string
	Fn    func(key string) (any, bool)
}

func (p LookupFunc) Name() string { return p.Label }

func (p LookupFunc) Lookup(key string) (any, bool) {
	if p.Fn == nil {
		return nil, false
	}
	return p.Fn(key)
}

// Resolve produces the effective configuration for keys. providers are ordered
// highest precedence first; the first provider that sets a key wins. Keys no
// provider sets are recorded as unset.
func Resolve(keys []string, providers ...Provider) Effective {
	eff := Effective{
		values:  make(map[string]any, len(keys)),
		sources: make(map[string]string, len(keys)),
	}
	for _, key := range keys {
		eff.values[key] = nil
		for _, p := range providers {
			if p == nil {
				continue
			}
			if v, ok := p.Lookup(key); ok {
				eff.values[key] = v
				eff.sources[key] = p.Name()
				break
			}
		}
	}
	return eff
}

// ResolveCommand resolves a command's declared keys plus extra keys using the
// standard four layers.
func ResolveCommand(command Command, layers Layers, extra ...string) Effective {
	keys := append(append([]string{}, command.Keys()...), extra...)
	keys = dedupe(keys)
	return Resolve(keys,
		layers.Args,
		layers.File,
		layers.State,
		MapProvider{Label: SourceDefault, Values: command.Defaults},
	)
}

// Layers carries the three non-default layers for ResolveCommand.
type Layers struct {
	Args  Provider
	File  Provider
	State Provider
}

// Layer names reported by Effective.Source.
const (
	SourceDefault = "default"
	SourceState   = "state"
	SourceFile    = "file"
	SourceArgs    = "args"
)

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
