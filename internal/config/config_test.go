package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Chunker.ChunkSize != 1000 {
		t.Fatalf("chunk size = %d", cfg.Chunker.ChunkSize)
	}
	if cfg.Memory.PromotionThreshold != 0.8 {
		t.Fatalf("threshold = %f", cfg.Memory.PromotionThreshold)
	}
}

func TestLoad_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := []byte("server:\n  addr: \":9001\"\ngenerator:\n  type: ollama\n  ollama:\n    model: mistral\n")
	if err := os.WriteFile(path, partial, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9001" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Generator.Ollama.Model != "mistral" {
		t.Fatalf("model = %q", cfg.Generator.Ollama.Model)
	}
	if cfg.Generator.Ollama.BaseURL != "http://localhost:11434/api" {
		t.Fatalf("base url default missing: %q", cfg.Generator.Ollama.BaseURL)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Fatalf("top_k = %d", cfg.Retrieval.TopK)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Server.Addr = ":7777"
	cfg.Memory.ShortTermSize = 50

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Addr != ":7777" || loaded.Memory.ShortTermSize != 50 {
		t.Fatalf("round trip lost values: %+v", loaded)
	}
}
