package config

import (
	"strings"
	"testing"
)

func TestParseLoaderMinimal(t *testing.T) {
	cfg := `modules_dir /var/lib/lbbsd/modules
state_dir /var/lib/lbbsd/state`

	loader, err := ParseLoader(strings.NewReader(cfg), "lbbsd.conf")
	if err != nil {
		t.Fatalf("ParseLoader: %v", err)
	}
	if loader.ModulesDir != "/var/lib/lbbsd/modules" {
		t.Fatalf("ModulesDir = %q", loader.ModulesDir)
	}
	if loader.StateDir != "/var/lib/lbbsd/state" {
		t.Fatalf("StateDir = %q", loader.StateDir)
	}
	if loader.Debug {
		t.Fatal("Debug should default to false")
	}
	if len(loader.Autoload) != 0 {
		t.Fatalf("Autoload = %v, want empty", loader.Autoload)
	}
}

func TestParseLoaderAutoloadBlock(t *testing.T) {
	cfg := `modules_dir /modules
debug
autoload {
	storage
	smtp exports-global-symbols
}`

	loader, err := ParseLoader(strings.NewReader(cfg), "lbbsd.conf")
	if err != nil {
		t.Fatalf("ParseLoader: %v", err)
	}
	if !loader.Debug {
		t.Fatal("expected debug to be enabled")
	}
	want := []AutoloadEntry{
		{Name: "storage"},
		{Name: "smtp", Flags: []string{"exports-global-symbols"}},
	}
	if len(loader.Autoload) != len(want) {
		t.Fatalf("Autoload = %+v, want %+v", loader.Autoload, want)
	}
	for i, e := range want {
		got := loader.Autoload[i]
		if got.Name != e.Name {
			t.Fatalf("entry %d: Name = %q, want %q", i, got.Name, e.Name)
		}
		if len(got.Flags) != len(e.Flags) {
			t.Fatalf("entry %d: Flags = %v, want %v", i, got.Flags, e.Flags)
		}
		for j, f := range e.Flags {
			if got.Flags[j] != f {
				t.Fatalf("entry %d flag %d = %q, want %q", i, j, got.Flags[j], f)
			}
		}
	}
}

func TestParseLoaderQuotedModulesDir(t *testing.T) {
	cfg := `modules_dir "/opt/lbbsd modules"`
	loader, err := ParseLoader(strings.NewReader(cfg), "lbbsd.conf")
	if err != nil {
		t.Fatalf("ParseLoader: %v", err)
	}
	if loader.ModulesDir != "/opt/lbbsd modules" {
		t.Fatalf("ModulesDir = %q", loader.ModulesDir)
	}
}

func TestParseLoaderMissingModulesDir(t *testing.T) {
	cfg := `state_dir /var/lib/lbbsd/state`
	if _, err := ParseLoader(strings.NewReader(cfg), "lbbsd.conf"); err == nil {
		t.Fatal("expected an error when modules_dir is absent")
	}
}

func TestParseLoaderUnknownDirective(t *testing.T) {
	cfg := `modules_dir /modules
bogus_directive value`
	if _, err := ParseLoader(strings.NewReader(cfg), "lbbsd.conf"); err == nil {
		t.Fatal("expected an error for an unknown top-level directive")
	}
}

func TestParseLoaderDuplicateAutoloadBlock(t *testing.T) {
	cfg := `modules_dir /modules
autoload {
	storage
}
autoload {
	smtp
}`
	if _, err := ParseLoader(strings.NewReader(cfg), "lbbsd.conf"); err == nil {
		t.Fatal("expected an error for a duplicate autoload block")
	}
}

func TestParseLoaderModulesDirWrongArgCount(t *testing.T) {
	cfg := `modules_dir a b`
	if _, err := ParseLoader(strings.NewReader(cfg), "lbbsd.conf"); err == nil {
		t.Fatal("expected an error when modules_dir has more than one argument")
	}
}
