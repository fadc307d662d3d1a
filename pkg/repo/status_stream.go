package repo

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/odvcencio/restack/pkg/object"
)

// StatusCode is a single-letter status classification for one side of a
// status entry ('.', 'M', 'A', 'D', 'R', 'U', '?').
type StatusCode byte

const (
	StatusUnmodified StatusCode = '.'
	StatusModified   StatusCode = 'M'
	StatusAdded      StatusCode = 'A'
	StatusDeleted    StatusCode = 'D'
	StatusRenamed    StatusCode = 'R'
	StatusUnmerged   StatusCode = 'U'
	StatusUntracked  StatusCode = '?'
)

// absentMode is the mode field used when a side of a status entry has no
// file.
const absentMode = "000000"

// StatusEntry is one decoded record of the machine status stream: the state
// of a single path across HEAD, the staging area, and the working copy.
type StatusEntry struct {
	IndexStatus    StatusCode
	WorktreeStatus StatusCode

	// Submodule is the raw submodule state field; "N..." for a regular file.
	Submodule string

	HeadMode     string
	IndexMode    string
	WorktreeMode string

	HeadHash  object.Hash
	IndexHash object.Hash

	Path string

	// OrigPath is the rename source; empty for non-rename entries.
	OrigPath string
}

// Paths returns the paths this entry names: the entry path, plus the rename
// source when present.
func (e *StatusEntry) Paths() []string {
	if e.OrigPath != "" {
		return []string{e.Path, e.OrigPath}
	}
	return []string{e.Path}
}

// WorkingCopyFileMode returns the entry's mode in the working copy, falling
// back through the staged and committed modes when the working copy side is
// absent.
func (e *StatusEntry) WorkingCopyFileMode() string {
	for _, m := range []string{e.WorktreeMode, e.IndexMode, e.HeadMode} {
		if m != "" && m != absentMode {
			return m
		}
	}
	return object.TreeModeFile
}

// DecodeStatusEntries parses a NUL-delimited machine status stream.
//
// Records start with a tag byte: '1' (ordinary) and 'u' (unmerged) records
// are a single NUL-terminated field group; '2' (rename or copy) records are
// a field group followed by a second NUL-terminated field holding the
// original path. The tag must be read before splitting, since a uniform
// split on NUL would misattribute the rename source field. Any other tag
// byte is a hard parse error.
func DecodeStatusEntries(data []byte) ([]StatusEntry, error) {
	var entries []StatusEntry
	rest := data
	for len(rest) > 0 {
		tag := rest[0]
		switch tag {
		case '1', 'u':
			group, remaining := cutNUL(rest)
			entry, err := parseStatusGroup(group)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
			rest = remaining
		case '2':
			group, remaining := cutNUL(rest)
			origPath, remaining := cutNUL(remaining)
			entry, err := parseStatusGroup(group)
			if err != nil {
				return nil, err
			}
			if len(origPath) == 0 {
				return nil, fmt.Errorf("decode status: rename record for %q is missing the original path", entry.Path)
			}
			if !utf8.Valid(origPath) {
				return nil, fmt.Errorf("decode status: original path is not valid UTF-8: %q", origPath)
			}
			entry.OrigPath = string(origPath)
			entries = append(entries, entry)
			rest = remaining
		default:
			return nil, fmt.Errorf("decode status: unexpected record tag %q", string(tag))
		}
	}
	return entries, nil
}

// cutNUL splits off the next NUL-terminated field. A missing terminator
// consumes the remainder of the input.
func cutNUL(data []byte) (field, rest []byte) {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, nil
}

// parseStatusGroup parses the space-separated fields of one record group:
// tag, XY codes, submodule state, three modes, two hashes, and the path.
func parseStatusGroup(group []byte) (StatusEntry, error) {
	fields := strings.SplitN(string(group), " ", 9)
	if len(fields) != 9 {
		return StatusEntry{}, fmt.Errorf("decode status: record has %d fields, want 9: %q", len(fields), group)
	}

	xy := fields[1]
	if len(xy) != 2 {
		return StatusEntry{}, fmt.Errorf("decode status: malformed XY field %q", xy)
	}
	path := fields[8]
	if !utf8.ValidString(path) {
		return StatusEntry{}, fmt.Errorf("decode status: path is not valid UTF-8: %q", path)
	}

	return StatusEntry{
		IndexStatus:    StatusCode(xy[0]),
		WorktreeStatus: StatusCode(xy[1]),
		Submodule:      fields[2],
		HeadMode:       fields[3],
		IndexMode:      fields[4],
		WorktreeMode:   fields[5],
		HeadHash:       object.Hash(fields[6]),
		IndexHash:      object.Hash(fields[7]),
		Path:           path,
	}, nil
}

// EncodeStatusEntries renders entries in the NUL-delimited machine format
// accepted by DecodeStatusEntries.
func EncodeStatusEntries(entries []StatusEntry) []byte {
	var buf bytes.Buffer
	for i := range entries {
		e := &entries[i]
		tag := byte('1')
		switch {
		case e.OrigPath != "":
			tag = '2'
		case e.IndexStatus == StatusUnmerged || e.WorktreeStatus == StatusUnmerged:
			tag = 'u'
		}

		fmt.Fprintf(&buf, "%c %c%c %s %s %s %s %s %s %s",
			tag,
			byte(e.IndexStatus), byte(e.WorktreeStatus),
			orDefault(e.Submodule, "N..."),
			orDefault(e.HeadMode, absentMode),
			orDefault(e.IndexMode, absentMode),
			orDefault(e.WorktreeMode, absentMode),
			orDefault(string(e.HeadHash), string(object.ZeroHash)),
			orDefault(string(e.IndexHash), string(object.ZeroHash)),
			e.Path,
		)
		buf.WriteByte(0)
		if tag == '2' {
			buf.WriteString(e.OrigPath)
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
