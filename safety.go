package senaka

import (
	"path"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxPipes is the pipe budget applied when the host does not override
// it: one pipe per command.
const DefaultMaxPipes = 1

// forbiddenExecutables are basenames the gate never lets reach the sandbox,
// no matter how the command is wrapped or prefixed.
var forbiddenExecutables = map[string]struct{}{
	"rm":       {},
	"dd":       {},
	"mkfs":     {},
	"shutdown": {},
	"reboot":   {},
	"halt":     {},
	"poweroff": {},
	"kill":     {},
	"pkill":    {},
	"del":      {},
	"erase":    {},
}

// wrapperExecutables run another program; the gate looks through them to the
// real executable.
var wrapperExecutables = map[string]struct{}{
	"sudo":    {},
	"command": {},
	"nohup":   {},
	"time":    {},
}

// zeroWidthReplacer strips characters that render as nothing but split a
// forbidden name in half for naive matchers.
var zeroWidthReplacer = strings.NewReplacer(
	"​", "", // zero-width space
	"‌", "", // zero-width non-joiner
	"‍", "", // zero-width joiner
	"⁠", "", // word joiner
	"\ufeff", "", // BOM
)

// CheckCommand validates a shell command against the sandbox policy: no
// forbidden top-level executable in any segment, no git push, and at most
// maxPipes pipe operators. It returns *ErrPolicy on refusal and nil when the
// command may be handed to the sandbox. The gate only inspects; isolation is
// the sandbox's job.
//
// Matching runs on an NFKC-normalized, zero-width-stripped copy so look-alike
// unicode cannot disguise an executable name. The original command string is
// what the caller executes.
func CheckCommand(cmd string, maxPipes int) error {
	if maxPipes < 0 {
		maxPipes = 0
	}

	detect := norm.NFKC.String(zeroWidthReplacer.Replace(cmd))
	segments, pipes := splitShellSegments(detect)

	total := 0
	for _, seg := range segments {
		total += len(seg)
	}
	if total == 0 {
		return &ErrPolicy{Reason: "empty command"}
	}

	if pipes > maxPipes {
		return &ErrPolicy{Reason: "too many pipes: " + strconv.Itoa(pipes) + " > " + strconv.Itoa(maxPipes)}
	}

	for _, seg := range segments {
		exe, rest := segmentExecutable(seg)
		if exe == "" {
			continue // pure variable assignment
		}
		if _, bad := forbiddenExecutables[exe]; bad {
			return &ErrPolicy{Reason: "forbidden executable: " + exe}
		}
		if exe == "git" && firstNonFlag(rest) == "push" {
			return &ErrPolicy{Reason: "git push is not allowed"}
		}
	}
	return nil
}

// splitShellSegments tokenizes cmd respecting single/double quotes and
// backslash escapes, splits on command separators (; newline && || & |), and
// counts single-pipe operators seen outside quotes.
func splitShellSegments(cmd string) (segments [][]string, pipes int) {
	var (
		cur      strings.Builder
		seg      []string
		inSingle bool
		inDouble bool
		escaped  bool
		hasTok   bool // quoted empty string still forms a token
	)

	flushToken := func() {
		if hasTok || cur.Len() > 0 {
			seg = append(seg, cur.String())
			cur.Reset()
			hasTok = false
		}
	}
	flushSegment := func() {
		flushToken()
		if len(seg) > 0 {
			segments = append(segments, seg)
			seg = nil
		}
	}

	runes := []rune(cmd)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if escaped {
			cur.WriteRune(r)
			escaped = false
			continue
		}

		switch {
		case r == '\\' && !inSingle:
			escaped = true
			hasTok = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			hasTok = true
		case r == '"' && !inSingle:
			inDouble = !inDouble
			hasTok = true
		case inSingle || inDouble:
			cur.WriteRune(r)
		case r == ';' || r == '\n':
			flushSegment()
		case r == '&':
			if i+1 < len(runes) && runes[i+1] == '&' {
				i++
			}
			flushSegment()
		case r == '|':
			if i+1 < len(runes) && runes[i+1] == '|' {
				i++
			} else {
				pipes++
			}
			flushSegment()
		case r == ' ' || r == '\t' || r == '\r':
			flushToken()
		default:
			cur.WriteRune(r)
		}
	}
	flushSegment()
	return segments, pipes
}

// segmentExecutable walks a segment's tokens past leading KEY=VALUE
// assignments and wrapper executables and returns the lowercased basename of
// the first real executable plus the tokens after it. An empty executable
// means the segment only assigns variables.
func segmentExecutable(tokens []string) (string, []string) {
	i := 0
	for i < len(tokens) && isAssignment(tokens[i]) {
		i++
	}
	for i < len(tokens) {
		base := strings.ToLower(path.Base(tokens[i]))
		if _, ok := wrapperExecutables[base]; ok {
			i++
			continue
		}
		if base == "env" {
			i++
			for i < len(tokens) && (strings.HasPrefix(tokens[i], "-") || isAssignment(tokens[i])) {
				i++
			}
			continue
		}
		return base, tokens[i+1:]
	}
	return "", nil
}

// isAssignment reports whether tok looks like KEY=VALUE. The key must be
// non-empty and free of path separators so "./a=b" stays an executable.
func isAssignment(tok string) bool {
	idx := strings.Index(tok, "=")
	return idx > 0 && !strings.ContainsAny(tok[:idx], "/\\")
}

// firstNonFlag returns the first token that is not an option flag.
func firstNonFlag(tokens []string) string {
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "-") {
			return tok
		}
	}
	return ""
}
