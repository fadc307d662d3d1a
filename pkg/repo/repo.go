package repo

import "github.com/odvcencio/restack/pkg/object"

// Repo represents an opened restack repository.
type Repo struct {
	RootDir string        // working directory root
	MetaDir string        // .restack/ directory
	Store   *object.Store // content-addressed object store
}
