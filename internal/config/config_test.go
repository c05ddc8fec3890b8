package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/abakhtiari/loopscope/internal/topology"
)

func TestDefaultTable(t *testing.T) {
	table := Default().Table()
	if p, ok := table.Classify("43"); p != topology.Negative || !ok {
		t.Fatalf("43 = %s, %v", p, ok)
	}
	if p, ok := table.Classify("0"); p != topology.Positive || !ok {
		t.Fatalf("0 = %s, %v", p, ok)
	}
}

func TestLoadMissingPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Loops.MaxLoops != Default().Loops.MaxLoops {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loopscope.yaml")
	doc := "loops:\n  max_length: 7\npolarity:\n  negative_markers: [\"43\", \"9\"]\n  positive_markers: [\"\", \"0\"]\ncache_dir: /tmp/loopscope-cache\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Loops.MaxLength != 7 {
		t.Fatalf("max_length = %d", cfg.Loops.MaxLength)
	}
	if cfg.CacheDir != "/tmp/loopscope-cache" {
		t.Fatalf("cache_dir = %q", cfg.CacheDir)
	}
	table := cfg.Table()
	if p, _ := table.Classify("9"); p != topology.Negative {
		t.Fatalf("9 = %s", p)
	}
	opts := cfg.Options()
	if opts.MaxLength != 7 {
		t.Fatalf("options = %+v", opts)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("loops: ["), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("bad YAML accepted")
	}
}
