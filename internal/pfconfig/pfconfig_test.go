package pfconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultAppliesCanonicalValues(t *testing.T) {
	c := Default(16)
	if c.PageSize != PageSize || c.FileTableSize != FTabSize || c.HashBuckets != HashBuckets {
		t.Fatalf("unexpected default config: %+v", c)
	}
	if c.DefaultPolicy != LRU {
		t.Fatalf("expected LRU default, got %v", c.DefaultPolicy)
	}
}

func TestLoadKeyValueFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfdb.conf")
	body := "buffercapacity=64\npagesize=8192\ndefaultpolicy=mru\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BufferCapacity != 64 || c.PageSize != 8192 || c.DefaultPolicy != MRU {
		t.Fatalf("unexpected config: %+v", c)
	}
	if c.FileTableSize != FTabSize || c.HashBuckets != HashBuckets {
		t.Fatalf("expected defaults to backfill unset fields: %+v", c)
	}
}

func TestLoadJSONFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfdb.json")
	body := `{"buffercapacity": 32, "pagesize": 4096, "defaultpolicy": "LRU"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BufferCapacity != 32 || c.DefaultPolicy != LRU {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestLoadRejectsMissingBufferCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfdb.conf")
	if err := os.WriteFile(path, []byte("pagesize=4096\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a config file missing buffercapacity")
	}
}
