package object

import "strings"

// Hash is a 64-character hex-encoded SHA-256 digest. The empty string means
// "no object".
type Hash string

// ZeroHash is the reserved all-zero object ID. It denotes "no object" in
// contexts that require a fixed-width value and must never be written as a
// tree entry value or dereferenced as content.
const ZeroHash Hash = "0000000000000000000000000000000000000000000000000000000000000000"

// IsZero reports whether h is absent or the reserved zero sentinel.
func (h Hash) IsZero() bool {
	return h == "" || h == ZeroHash
}

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Name        string
	IsDir       bool
	Mode        string
	BlobHash    Hash
	SubtreeHash Hash
}

// TreeObj holds a sorted list of tree entries.
type TreeObj struct {
	Entries []TreeEntry // sorted by Name
}

// Lookup returns the entry with the given name, if present.
func (tr *TreeObj) Lookup(name string) (TreeEntry, bool) {
	for _, e := range tr.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash  Hash
	Parents   []Hash
	Author    string
	Timestamp int64
	Signature string
	Message   string
}

// OnlyParent returns the commit's sole parent hash. It returns false when the
// commit has no parents or more than one.
func (c *CommitObj) OnlyParent() (Hash, bool) {
	if len(c.Parents) == 1 && c.Parents[0] != "" {
		return c.Parents[0], true
	}
	return "", false
}

// EmptyTreeHash returns the canonical hash of the tree with no entries.
func EmptyTreeHash() Hash {
	return HashObject(TypeTree, nil)
}

// NormalizeMode maps any non-executable file mode onto TreeModeFile.
func NormalizeMode(mode string) string {
	if strings.TrimSpace(mode) == TreeModeExecutable {
		return TreeModeExecutable
	}
	return TreeModeFile
}
