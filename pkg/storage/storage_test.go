package storage

import (
	"bytes"
	"testing"
)

func TestStateStorageRoundTrip(t *testing.T) {
	store, err := NewStateStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage init failed: %v", err)
	}
	store.SetMainSaveName("game-001")

	data := []byte("savestate blob")
	if err := store.Save(store.GetSavePath(), data); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := store.Load(store.GetSavePath())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("loaded %q, want %q", got, data)
	}
}

func TestZipStorageRoundTrip(t *testing.T) {
	plain, err := NewStateStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage init failed: %v", err)
	}
	plain.SetMainSaveName("game-002")
	store := &ZipStorage{Storage: plain}

	data := bytes.Repeat([]byte{0x42}, 1<<16)
	if err := store.Save(store.GetSavePath(), data); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// the file on disk is compressed
	raw, err := plain.Load(store.GetSavePath())
	if err != nil {
		t.Fatalf("raw load failed: %v", err)
	}
	if len(raw) >= len(data) {
		t.Errorf("state was not compressed: %v >= %v", len(raw), len(data))
	}

	got, err := store.Load(store.GetSavePath())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("zip round trip mismatch")
	}
}
