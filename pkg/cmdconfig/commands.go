package cmdconfig

import (
	"github.com/3leaps/pspace/pkg/projectconfig"
	"github.com/3leaps/pspace/pkg/runstate"
)

// Command declares a command's option keys, their built-in defaults, and the
// keys that fall back to last-run state.
type Command struct {
	Name string

	// Defaults holds every declared key; a nil value means "no default".
	Defaults map[string]any

	// order preserves declaration order for templates.
	order []string
}

// Keys returns the declared option keys in declaration order.
func (c Command) Keys() []string {
	if len(c.order) > 0 {
		return append([]string(nil), c.order...)
	}
	return sortedKeys(c.Defaults)
}

// Option keys shared across commands.
const (
	KeyJobID         = "job_id"
	KeyTotalLogLines = runstate.KeyTotalLogLines
	KeyLastJobID     = runstate.KeyLastJobID
)

// StateField names the run-state field a key falls back to.
type StateField struct {
	Section string
	Field   string
}

// StateMapping lists the only keys that read from last-run state.
var StateMapping = map[string]StateField{
	KeyJobID:         {Section: "job_info", Field: "id"},
	KeyTotalLogLines: {Section: "pspace_info", Field: runstate.KeyTotalLogLines},
	KeyLastJobID:     {Section: "pspace_info", Field: runstate.KeyLastJobID},
}

// DefaultTailLines is the number of trailing log lines shown by tail.
const DefaultTailLines = 20

// Built-in command declarations.
var (
	Create = newCommand("create",
		kv{"machineType", "K80"},
		kv{"project", nil},
		kv{"ignoreFiles", []string{}},
		kv{"container", "paperspace/tensorflow-python"},
		kv{"commands", []string{}},
	)
	Tail = newCommand("tail",
		kv{KeyJobID, nil},
		kv{"follow", false},
		kv{"last", DefaultTailLines},
	)
	Jobs = newCommand("jobs",
		kv{"project", nil},
		kv{"state", nil},
		kv{"last", nil},
		kv{"utc", false},
	)
	Status = newCommand("status",
		kv{KeyJobID, nil},
		kv{"utc", false},
	)
	Getart = newCommand("getart",
		kv{KeyJobID, nil},
		kv{"destdir", "data"},
	)
	Stop = newCommand("stop",
		kv{KeyJobID, nil},
	)
)

// All lists the commands that take options, in help order.
var All = []Command{Create, Tail, Jobs, Status, Getart, Stop}

// Lookup finds a command declaration by name.
func Lookup(name string) (Command, bool) {
	for _, c := range All {
		if c.Name == name {
			return c, true
		}
	}
	return Command{}, false
}

// TemplateSections renders the built-in defaults as project file sections,
// omitting job_id which only makes sense per invocation.
func TemplateSections() []projectconfig.Section {
	out := make([]projectconfig.Section, 0, len(All))
	for _, c := range All {
		values := make(map[string]any, len(c.Defaults))
		for _, k := range c.Keys() {
			if k == KeyJobID {
				continue
			}
			values[k] = c.Defaults[k]
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, projectconfig.Section{Command: c.Name, Values: values})
	}
	return out
}

type kv struct {
	key   string
	value any
}

func newCommand(name string, entries ...kv) Command {
	c := Command{Name: name, Defaults: make(map[string]any, len(entries))}
	for _, e := range entries {
		c.Defaults[e.key] = e.value
		c.order = append(c.order, e.key)
	}
	return c
}

// StateProvider serves keys mapped in StateMapping from last-run state.
// A nil state contributes nothing.
func StateProvider(st *runstate.State) Provider {
	return LookupFunc{Label: SourceState, Fn: func(key string) (any, bool) {
		field, ok := StateMapping[key]
		if !ok || st == nil {
			return nil, false
		}
		return st.Lookup(field.Section, field.Field)
	}}
}

// FileProvider serves a command's section of the project file. A missing file
// or section contributes nothing.
func FileProvider(f *projectconfig.File, command string) Provider {
	section, _ := f.Section(command)
	return MapProvider{Label: SourceFile, Values: section}
}

// ArgsProvider serves explicitly supplied invocation values. Callers include
// only values the user actually set, never flag zero values.
func ArgsProvider(values map[string]any) Provider {
	return MapProvider{Label: SourceArgs, Values: values}
}
