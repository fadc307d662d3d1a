// Package diff3 implements a line-oriented three-way merge over a Myers
// diff alignment, producing git-style conflict markers for regions that
// cannot be resolved automatically.
package diff3

import (
	"bytes"
	"strings"
)

// Result is the outcome of a three-way merge.
type Result struct {
	Merged       []byte
	HasConflicts bool
	Conflicts    int // number of conflict regions emitted
}

// Merge performs a three-way merge of ours and theirs against their common
// base. Regions changed on only one side are taken from that side; regions
// changed identically on both sides collapse; anything else becomes a
// conflict region delimited with <<<<<<< / ======= / >>>>>>> markers.
func Merge(base, ours, theirs []byte) Result {
	baseLines := splitLines(base)
	oursLines := splitLines(ours)
	theirsLines := splitLines(theirs)

	matchOurs := matchLines(baseLines, oursLines)
	matchTheirs := matchLines(baseLines, theirsLines)

	var buf bytes.Buffer
	res := Result{}

	i, o, t := 0, 0, 0
	for i < len(baseLines) || o < len(oursLines) || t < len(theirsLines) {
		if i < len(baseLines) && matchOurs[i] == o && matchTheirs[i] == t {
			// Stable line: present and aligned on all three sides.
			buf.WriteString(baseLines[i])
			i++
			o++
			t++
			continue
		}

		// Unstable region: extend to the next line stable on both sides.
		j := i
		for j < len(baseLines) && !(matchOurs[j] >= 0 && matchTheirs[j] >= 0) {
			j++
		}
		oursEnd, theirsEnd := len(oursLines), len(theirsLines)
		if j < len(baseLines) {
			oursEnd = matchOurs[j]
			theirsEnd = matchTheirs[j]
		}

		baseSeg := baseLines[i:j]
		oursSeg := oursLines[o:oursEnd]
		theirsSeg := theirsLines[t:theirsEnd]

		switch {
		case linesEqual(oursSeg, theirsSeg):
			writeLines(&buf, oursSeg)
		case linesEqual(oursSeg, baseSeg):
			writeLines(&buf, theirsSeg)
		case linesEqual(theirsSeg, baseSeg):
			writeLines(&buf, oursSeg)
		default:
			writeConflict(&buf, oursSeg, theirsSeg)
			res.HasConflicts = true
			res.Conflicts++
		}

		i = j
		o = oursEnd
		t = theirsEnd
	}

	res.Merged = buf.Bytes()
	return res
}

// splitLines splits content into lines, each retaining its trailing newline.
// A final line without a newline is kept as-is.
func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(b), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeLines(buf *bytes.Buffer, lines []string) {
	for _, l := range lines {
		buf.WriteString(l)
	}
}

func writeConflict(buf *bytes.Buffer, oursSeg, theirsSeg []string) {
	buf.WriteString("<<<<<<< ours\n")
	writeLinesTerminated(buf, oursSeg)
	buf.WriteString("=======\n")
	writeLinesTerminated(buf, theirsSeg)
	buf.WriteString(">>>>>>> theirs\n")
}

// writeLinesTerminated writes lines ensuring the final line ends with a
// newline, so the closing conflict marker starts on its own line.
func writeLinesTerminated(buf *bytes.Buffer, lines []string) {
	for i, l := range lines {
		buf.WriteString(l)
		if i == len(lines)-1 && !strings.HasSuffix(l, "\n") {
			buf.WriteByte('\n')
		}
	}
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
