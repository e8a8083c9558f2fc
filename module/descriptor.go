package module

// Flags is a bitset of module capability flags recognized by the loader.
type Flags uint32

const (
	// FlagExportsGlobalSymbols marks a module whose symbols should be
	// visible to modules opened afterwards. It is recorded on the record;
	// the plugin backend opens every shared object with process-wide
	// symbol visibility whether or not it is set, and does not isolate
	// modules that lack it.
	FlagExportsGlobalSymbols Flags = 1 << iota
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// Entrypoints groups the optional lifecycle callables a module exposes.
// Load and Unload are required for dynamically loaded modules; Reload is
// optional (a module without one is unloaded then loaded again on
// reload).
//
// Each callable receives the Handle the Registry produced for this module
// at registration time, the module's own durable reference into the
// loader (BBS_MODULE_SELF in spirit).
type Entrypoints struct {
	Load   func(self *Handle) error
	Reload func(self *Handle) error
	Unload func(self *Handle) error
}

// Descriptor is what a module publishes to the loader from within its own
// constructor.
type Descriptor struct {
	Name        string
	Description string
	Flags       Flags
	Entrypoints Entrypoints
}
