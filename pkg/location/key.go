package location

import (
	"path"
	"path/filepath"
)

// InputKey identifies a scanned document independently of how it was
// collected, so findings and reports can name their source without caring
// whether it came from disk or from a repository fetch.
type InputKey struct {
	// Repo is the "owner/name" slug for documents fetched from a remote
	// repository, empty for local files.
	Repo string `json:"repo,omitempty"`
	// Ref is the git reference the document was fetched at. Empty means
	// the repository's default branch.
	Ref string `json:"ref,omitempty"`
	// Path is the file path: as given on disk for local inputs,
	// repository-relative for remote ones.
	Path string `json:"path"`
}

// LocalKey builds the key for a document read from the local filesystem.
func LocalKey(filePath string) InputKey {
	return InputKey{Path: filePath}
}

// RemoteKey builds the key for a document fetched from a repository.
func RemoteKey(repo, ref, filePath string) InputKey {
	return InputKey{Repo: repo, Ref: ref, Path: filePath}
}

// Remote reports whether the document came from a repository fetch.
func (k InputKey) Remote() bool {
	return k.Repo != ""
}

// Filename returns the document's base name. Remote paths are always
// slash-separated; local ones follow the host filesystem.
func (k InputKey) Filename() string {
	if k.Remote() {
		return path.Base(k.Path)
	}
	return filepath.Base(k.Path)
}

// String renders the key the way reports present it: the plain path for
// local inputs, "owner/name/path@ref" for remote ones.
func (k InputKey) String() string {
	if !k.Remote() {
		return k.Path
	}
	s := k.Repo + "/" + k.Path
	if k.Ref != "" {
		s += "@" + k.Ref
	}
	return s
}
