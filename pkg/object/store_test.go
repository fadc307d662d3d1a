package object

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestStoreWriteRead(t *testing.T) {
	s := NewStore(t.TempDir())

	content := []byte("hello, restack\n")
	h, err := s.Write(TypeBlob, content)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if h != HashObject(TypeBlob, content) {
		t.Fatalf("hash = %s, want %s", h, HashObject(TypeBlob, content))
	}
	if !s.Has(h) {
		t.Fatal("Has = false after write")
	}

	objType, data, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if objType != TypeBlob || !bytes.Equal(data, content) {
		t.Fatalf("Read = (%q, %q), want (blob, original content)", objType, data)
	}
}

func TestStoreWriteIdempotent(t *testing.T) {
	s := NewStore(t.TempDir())

	h1, err := s.Write(TypeBlob, []byte("same"))
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	h2, err := s.Write(TypeBlob, []byte("same"))
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hashes differ: %s vs %s", h1, h2)
	}
}

func TestStoreOnDiskBytesCompressed(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)

	content := []byte("plaintext marker that must not appear verbatim on disk")
	h, err := s.Write(TypeBlob, content)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(root, "objects", string(h[:2]), string(h[2:])))
	if err != nil {
		t.Fatalf("read object file: %v", err)
	}
	if bytes.Contains(raw, content) {
		t.Fatal("object file contains uncompressed content")
	}
}

func TestStoreReadMissingObject(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, _, err := s.Read(testHash(9)); err == nil {
		t.Fatal("expected error for missing object")
	}
}

func TestStoreTypedReadRejectsMismatch(t *testing.T) {
	s := NewStore(t.TempDir())

	h, err := s.WriteBlob(&Blob{Data: []byte("not a tree")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	if _, err := s.ReadTree(h); err == nil {
		t.Fatal("ReadTree accepted a blob")
	}
}

func TestStoreTreeCommitRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	blobHash, err := s.WriteBlob(&Blob{Data: []byte("file contents")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	treeHash, err := s.WriteTree(&TreeObj{Entries: []TreeEntry{
		{Name: "file.txt", Mode: TreeModeFile, BlobHash: blobHash},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	commitHash, err := s.WriteCommit(&CommitObj{
		TreeHash:  treeHash,
		Author:    "test",
		Timestamp: 1,
		Message:   "initial",
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}

	c, err := s.ReadCommit(commitHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	tr, err := s.ReadTree(c.TreeHash)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	entry, ok := tr.Lookup("file.txt")
	if !ok || entry.BlobHash != blobHash {
		t.Fatalf("tree entry = %+v, ok=%v", entry, ok)
	}
}
