package config

import (
	"fmt"
	"io"
	"strings"
)

// AutoloadEntry is one line of the autoload block: a module name plus any
// flags recognized for it (currently just exports-global-symbols).
type AutoloadEntry struct {
	Name  string
	Flags []string
}

// Loader is the parsed content of the loader's own configuration file.
type Loader struct {
	ModulesDir string
	StateDir   string
	Debug      bool
	Autoload   []AutoloadEntry
}

// ParseLoader reads and validates the loader configuration from r.
//
// Recognized top-level directives, one per line, matching SPEC_FULL.md's
// grammar exactly (no keyword before an autoload entry's module name, no
// statement terminator):
//
//	modules_dir <path>
//	state_dir <path>
//	debug
//	autoload {
//	    <name> [flag...]
//	    ...
//	}
//
// Unknown top-level directives are reported as errors; unknown entries
// inside autoload (module names the registry has never heard of) are not -
// per the loader's configuration contract they are reported at load time,
// not at parse time.
func ParseLoader(r io.Reader, fileName string) (*Loader, error) {
	nodes, err := Read(r, fileName)
	if err != nil {
		return nil, err
	}

	cfg := &Loader{}
	seenAutoload := false
	for _, n := range nodes {
		switch strings.ToLower(n.Name) {
		case "modules_dir":
			if len(n.Args) != 1 {
				return nil, NodeErr(n, "modules_dir expects exactly one argument")
			}
			cfg.ModulesDir = n.Args[0]
		case "state_dir":
			if len(n.Args) != 1 {
				return nil, NodeErr(n, "state_dir expects exactly one argument")
			}
			cfg.StateDir = n.Args[0]
		case "debug":
			cfg.Debug = true
		case "autoload":
			if seenAutoload {
				return nil, NodeErr(n, "duplicate autoload block")
			}
			seenAutoload = true
			for _, child := range n.Children {
				if len(child.Args) == 0 && len(child.Children) == 0 {
					cfg.Autoload = append(cfg.Autoload, AutoloadEntry{Name: child.Name})
					continue
				}
				cfg.Autoload = append(cfg.Autoload, AutoloadEntry{
					Name:  child.Name,
					Flags: child.Args,
				})
			}
		default:
			return nil, NodeErr(n, "unknown directive: %s", n.Name)
		}
	}

	if cfg.ModulesDir == "" {
		return nil, fmt.Errorf("%s: modules_dir is required", fileName)
	}

	return cfg, nil
}
