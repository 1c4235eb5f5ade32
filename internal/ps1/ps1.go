// Package ps1 implements the embedded-metadata protocol that recovers
// structured command results from raw terminal text.
//
// The shell prompt is the only point guaranteed to run after every
// command, so the prompt itself is used as the delivery channel: it
// prints a sentinel-delimited JSON block containing the exit code, pid,
// user, host, working directory and interpreter path of the command
// that just finished. The codec scans a raw capture for all such
// blocks, validates each one independently, and never lets a corrupt
// block abort the scan.
package ps1

import (
	"bytes"
	"encoding/json"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// BeginMarker and EndMarker delimit one metadata block in terminal output.
const (
	BeginMarker = "\n###PS1JSON###\n"
	EndMarker   = "\n###PS1END###"
)

// blockRegexp matches one sentinel-delimited region. Multiline so the
// begin marker anchors at a line start, and dot-matches-newline so the
// JSON body may span lines.
var blockRegexp = regexp.MustCompile(`(?ms)^###PS1JSON###\n(.*?)###PS1END###`)

// Metadata holds the structured fields recovered from one block.
// ExitCode and PID are always integers; -1 means unknown or unparsable.
type Metadata struct {
	ExitCode        int    `json:"exit_code"`
	PID             int    `json:"pid"`
	Username        string `json:"username,omitempty"`
	Hostname        string `json:"hostname,omitempty"`
	WorkingDir      string `json:"working_dir,omitempty"`
	InterpreterPath string `json:"py_interpreter_path,omitempty"`
	Prefix          string `json:"prefix,omitempty"`
	Suffix          string `json:"suffix,omitempty"`
}

// NewMetadata returns metadata for a command whose result is not yet
// known. ExitCode and PID start at -1.
func NewMetadata() Metadata {
	return Metadata{ExitCode: -1, PID: -1}
}

// Prompt renders the PS1 fragment that makes the shell emit one
// metadata block after every command. The JSON body uses parameter and
// command substitutions that bash expands when it displays the prompt,
// and every double quote is backslash-escaped so that bash's
// prompt-string quote removal prints it verbatim instead of treating
// it as quoting. Prompt escapes like \u and \h must not appear here:
// the JSON encoder doubles their backslash, bash collapses it back,
// and the emitted block would carry a literal \u — an invalid JSON
// escape that poisons the whole block.
func Prompt() string {
	fields := struct {
		PID             string `json:"pid"`
		ExitCode        string `json:"exit_code"`
		Username        string `json:"username"`
		Hostname        string `json:"hostname"`
		WorkingDir      string `json:"working_dir"`
		InterpreterPath string `json:"py_interpreter_path"`
	}{
		PID:             "$!",
		ExitCode:        "$?",
		Username:        "$(whoami)",
		Hostname:        "$(hostname)",
		WorkingDir:      "$(pwd)",
		InterpreterPath: `$(which python 2>/dev/null || echo "")`,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // keep 2>/dev/null intact
	enc.SetIndent("", "  ")
	_ = enc.Encode(fields)

	body := strings.TrimRight(buf.String(), "\n")
	body = strings.ReplaceAll(body, `"`, `\"`)
	return BeginMarker + body + EndMarker + "\n"
}

// Block is one sentinel-delimited region located in a capture.
type Block struct {
	Body  string // raw JSON body
	Start int    // byte offset of the begin sentinel in the capture
	End   int    // byte offset just past the end sentinel
}

// FindBlockSpans scans text for sentinel-delimited regions and returns
// every region that parses, with its position, in order of occurrence.
// A region whose body is not valid JSON is logged and dropped; the scan
// of subsequent regions is unaffected.
func FindBlockSpans(text string) []Block {
	var blocks []Block
	for _, idx := range blockRegexp.FindAllStringSubmatchIndex(text, -1) {
		body := text[idx[2]:idx[3]]
		var probe any
		if err := json.Unmarshal([]byte(body), &probe); err != nil {
			log.Printf("ps1: dropping malformed metadata block %q: %v", strings.TrimSpace(body), err)
			continue
		}
		blocks = append(blocks, Block{Body: body, Start: idx[0], End: idx[1]})
	}
	return blocks
}

// FindBlocks is FindBlockSpans without the positions: just the raw JSON
// bodies of the valid regions.
func FindBlocks(text string) []string {
	var bodies []string
	for _, b := range FindBlockSpans(text) {
		bodies = append(bodies, b.Body)
	}
	return bodies
}

// StripBlocks removes every sentinel-delimited region from text,
// whether or not its body parses. Used to separate command output from
// the protocol's own traffic.
func StripBlocks(text string) string {
	return blockRegexp.ReplaceAllString(text, "")
}

// ParseBlock decodes one raw block body into Metadata. It never fails:
// a body that does not decode yields the unknown-result metadata, and
// unparsable numeric fields are coerced to -1.
func ParseBlock(raw string) Metadata {
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		log.Printf("ps1: failed to decode metadata block: %v", err)
		return NewMetadata()
	}
	return MetadataFromMap(fields)
}

// MetadataFromMap builds Metadata from a loose field mapping, applying
// numeric coercion to pid and exit_code. This is the single boundary
// where untyped input becomes the typed record; callers holding legacy
// field-by-field values convert them here before constructing results.
func MetadataFromMap(fields map[string]any) Metadata {
	m := NewMetadata()

	if v, ok := fields["pid"]; ok {
		if n, ok := coerceInt(v); ok {
			m.PID = n
		}
	}
	if v, ok := fields["exit_code"]; ok {
		if n, ok := coerceInt(v); ok {
			m.ExitCode = n
		} else {
			// Affects success/failure interpretation, so worth a warning.
			log.Printf("ps1: failed to parse exit code %v, setting to -1", v)
		}
	}

	m.Username = textField(fields, "username")
	m.Hostname = textField(fields, "hostname")
	m.WorkingDir = textField(fields, "working_dir")
	m.InterpreterPath = textField(fields, "py_interpreter_path")
	m.Prefix = textField(fields, "prefix")
	m.Suffix = textField(fields, "suffix")
	return m
}

// coerceInt converts a decoded JSON value to an int via float-then-int
// conversion, so that "0", "12.0" and 12 all coerce.
func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}

func textField(fields map[string]any, key string) string {
	if v, ok := fields[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
