package diskfile

import (
	"path/filepath"
	"testing"

	"github.com/jordy-godjo/pfdb/internal/pferr"
)

func TestCreateOpenHeaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.pfdb")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}

	f, hdr, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if hdr.FirstFree != -1 || hdr.NumPages != 0 {
		t.Fatalf("unexpected initial header: %+v", hdr)
	}

	hdr.NumPages = 3
	hdr.FirstFree = 1
	if err := RewriteHeader(f, hdr); err != nil {
		t.Fatalf("RewriteHeader: %v", err)
	}

	f2, hdr2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f2.Close()
	if hdr2 != hdr {
		t.Fatalf("header did not persist: got %+v want %+v", hdr2, hdr)
	}
}

func TestCreateAlreadyExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.pfdb")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := Create(path)
	if !pferr.Is(err, pferr.AlreadyExists) {
		t.Fatalf("expected AlreadyExists, got %v", err)
	}
}

func TestPageReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.pfdb")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f, _, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	const pageSize = 64
	out := make([]byte, RawPageRecordSize(pageSize))
	copy(out[4:], []byte("HELLO"))
	if err := WritePage(f, pageSize, 0, out); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	in := make([]byte, RawPageRecordSize(pageSize))
	if err := ReadPage(f, pageSize, 0, in); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if string(in[4:9]) != "HELLO" {
		t.Fatalf("unexpected payload: %q", in[4:9])
	}
}

func TestDestroyRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.pfdb")
	if err := Create(path); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := Destroy(path); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := Create(path); err != nil {
		t.Fatalf("recreate after destroy: %v", err)
	}
}
