package prefs

import (
	"fmt"
	"strconv"
	"strings"
)

// EvalError is the structured error the evaluator returns on a syntax
// or semantic problem (§4.2). ShortMessage is meant for the OLED;
// LongMessage for logs or the HTTP caller.
type EvalError struct {
	LineNumber   int
	ShortMessage string
	LongMessage  string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.LineNumber, e.ShortMessage, e.LongMessage)
}

func evalErr(line int, short, long string) *EvalError {
	return &EvalError{LineNumber: line, ShortMessage: short, LongMessage: long}
}

// Result reports the outcome of a successful evaluation.
type Result struct {
	// Saved reports whether the script executed `save`.
	Saved bool
}

// Evaluate runs a config script against s. On success it returns the
// result describing whether `save` executed; on failure the returned
// error is always an *EvalError and s may be left partially mutated —
// the caller should issue `clear` first if it wants a pristine base
// (§4.2).
func (s *Store) Evaluate(script string) (Result, error) {
	lines := splitLines(script)
	var res Result
	i := 0
	for i < len(lines) {
		lineNo := i + 1
		raw := lines[i]
		i++
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tok, rest := firstToken(line)
		switch tok {
		case "end":
			return res, nil
		case "clear":
			s.ResetToFactory()
		case "save":
			res.Saved = true
		case "version":
			if err := checkVersion(lineNo, rest); err != nil {
				return res, err
			}
		case "set":
			if err := s.execSet(lineNo, rest); err != nil {
				return res, err
			}
		case "cert":
			consumed, err := s.execCert(lineNo, rest, lines[i:])
			if err != nil {
				return res, err
			}
			i += consumed
		default:
			return res, evalErr(lineNo, "Syntax error", fmt.Sprintf("unrecognized statement %q", tok))
		}
	}
	// Ran off the end without `end`: treat as implicit success, as the
	// original evaluator does for scripts with no terminator.
	return res, nil
}

func splitLines(script string) []string {
	script = strings.ReplaceAll(script, "\r\n", "\n")
	return strings.Split(script, "\n")
}

func firstToken(line string) (tok, rest string) {
	tok, rest, _ = strings.Cut(line, " ")
	return tok, strings.TrimSpace(rest)
}

func checkVersion(lineNo int, rest string) *EvalError {
	rest = strings.TrimSpace(rest)
	parts := strings.SplitN(rest, ".", 3)
	if len(parts) != 3 {
		return evalErr(lineNo, "Bad version", fmt.Sprintf("expected M.m.p, got %q", rest))
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	_, err3 := strconv.Atoi(parts[2]) // patch must parse, but is otherwise ignored
	if err1 != nil || err2 != nil || err3 != nil {
		return evalErr(lineNo, "Bad version", fmt.Sprintf("could not parse %q", rest))
	}
	if major != FirmwareMajor || minor > FirmwareMinor {
		return evalErr(lineNo, "Bad version",
			fmt.Sprintf("script requires %d.%d.x, firmware is %d.%d", major, minor, FirmwareMajor, FirmwareMinor))
	}
	return nil
}

func (s *Store) execSet(lineNo int, rest string) *EvalError {
	name, valuePart := firstToken(rest)
	if name == "" {
		return evalErr(lineNo, "Syntax error", "set requires a name")
	}
	if valuePart == "" {
		return evalErr(lineNo, "Missing value", fmt.Sprintf("set %s requires a value", name))
	}
	value, err := unquote(valuePart)
	if err != nil {
		return evalErr(lineNo, "Syntax error", err.Error())
	}
	i := s.index(name)
	if i < 0 {
		return evalErr(lineNo, "Unknown name", fmt.Sprintf("no such preference %q", name))
	}
	p := &s.prefs[i]
	if p.Flags&Cert != 0 {
		return evalErr(lineNo, "Wrong statement", fmt.Sprintf("%q is a certificate; use `cert`", name))
	}
	if p.Flags&Integer != 0 {
		n, err := strconv.Atoi(value)
		if err != nil {
			return evalErr(lineNo, "Bad value", fmt.Sprintf("%q is not an integer", value))
		}
		p.IntValue = int32(n)
		return nil
	}
	p.StrValue = value
	return nil
}

// unquote trims an optional matching pair of single or double quotes,
// so values may contain spaces, per §4.2.
func unquote(s string) (string, error) {
	if len(s) < 2 {
		return s, nil
	}
	q := s[0]
	if q != '\'' && q != '"' {
		return s, nil
	}
	if s[len(s)-1] != q {
		return "", fmt.Errorf("unterminated quoted value")
	}
	return s[1 : len(s)-1], nil
}

const (
	certBegin = "-----BEGIN "
	certEnd   = "-----END "
)

// execCert consumes the `cert <name>` statement plus its BEGIN/END
// delimited body from the following lines, returning how many of those
// lines it consumed.
func (s *Store) execCert(lineNo int, rest string, following []string) (int, *EvalError) {
	name := strings.TrimSpace(rest)
	if name == "" {
		return 0, evalErr(lineNo, "Syntax error", "cert requires a name")
	}
	i := s.index(name)
	if i < 0 {
		return 0, evalErr(lineNo, "Unknown name", fmt.Sprintf("no such preference %q", name))
	}
	p := &s.prefs[i]
	if p.Flags&Cert == 0 {
		return 0, evalErr(lineNo, "Wrong statement", fmt.Sprintf("%q is not a certificate; use `set`", name))
	}
	var body strings.Builder
	started := false
	for idx, l := range following {
		if !started {
			if !strings.HasPrefix(l, certBegin) {
				return 0, evalErr(lineNo+1+idx, "Syntax error", "expected -----BEGIN ... line")
			}
			started = true
		}
		if body.Len() > 0 {
			body.WriteByte('\n')
		}
		body.WriteString(l)
		if strings.HasPrefix(l, certEnd) {
			p.StrValue = body.String()
			return idx + 1, nil
		}
	}
	return 0, evalErr(lineNo, "Unterminated certificate", "reached end of script before -----END")
}
