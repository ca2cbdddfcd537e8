// Package nixlog parses the structured log output that parsers write to stderr
// when run with --log-format internal-json.
//
// Each line is either empty, too short to carry a prefix, or a tagged record:
//
//	@nix {"action":"msg","file":"pkg.nix","level":0,"msg":"syntax error","raw_msg":"syntax error"}
//
// Records are grouped by severity and deduplicated into one CompLog per severity.
package nixlog

import (
	"bytes"
	"fmt"

	"github.com/valyala/fastjson"

	"github.com/flaker/flaker/src/cli/logging"
	"github.com/flaker/flaker/src/core"
)

var log = logging.Log

// prefix tags every structured line.
const prefix = "@nix"

// prefixLen is the number of bytes used to classify a line.
const prefixLen = len(prefix)

// msgAction is the only action we understand.
const msgAction = "msg"

// Severity levels as they appear in the level field.
const (
	levelError   = 0
	levelWarning = 1
)

var parserPool fastjson.ParserPool

// An Entry is a single decoded log record.
type Entry struct {
	Action string
	File   *string
	Level  int
	Msg    string
	RawMsg *string
}

// Key returns the message this entry is keyed under: its raw message if it has one, else its
// rendered one, normalised.
func (e *Entry) Key() core.Message {
	if e.RawMsg != nil {
		return Normalise(*e.RawMsg)
	}
	return Normalise(e.Msg)
}

// Position returns the entry's file, or the given default if it doesn't name one.
func (e *Entry) Position(def core.Position) core.Position {
	if e.File != nil {
		return *e.File
	}
	return def
}

// Split parses one parser's stderr into its errors, warnings and traces.
// The given file is used as the position of any record that doesn't name its own.
// Lines with malformed JSON are logged and skipped; an unknown line prefix or action is an error.
func Split(stderr []byte, file core.Position) (core.ErrLog, core.WarnLog, core.TraceLog, error) {
	errs, warns, traces := core.ErrLog{}, core.WarnLog{}, core.TraceLog{}
	for _, line := range bytes.Split(stderr, []byte{'\n'}) {
		entry, err := parseLine(line)
		if err != nil {
			return nil, nil, nil, err
		} else if entry == nil {
			continue
		}
		key := entry.Key()
		pos := entry.Position(file)
		switch entry.Level {
		case levelError:
			errs.Add(key, pos)
		case levelWarning:
			warns.Add(key, pos)
		default:
			traces.Add(key, pos)
		}
	}
	return errs, warns, traces, nil
}

// parseLine parses a single line. It returns nil if the line should be ignored.
func parseLine(line []byte) (*Entry, error) {
	if len(line) < prefixLen {
		return nil, nil
	} else if p := line[:prefixLen]; string(p) != prefix {
		return nil, fmt.Errorf("%w: unsupported line prefix %q", core.ErrProtocolViolation, p)
	}
	var body []byte
	if len(line) > prefixLen+1 {
		body = line[prefixLen+1:]
	}
	entry, err := parseEntry(body)
	if err != nil {
		log.Error("Error parsing log record: %s; %s", err, body)
		return nil, nil
	} else if entry.Action != msgAction {
		return nil, fmt.Errorf("%w: unsupported action %q", core.ErrProtocolViolation, entry.Action)
	}
	return entry, nil
}

// parseEntry decodes the JSON body of a record.
func parseEntry(body []byte) (*Entry, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, err
	}
	obj, err := v.Object()
	if err != nil {
		return nil, err
	}
	entry := &Entry{}
	if entry.Action, err = requiredString(obj, "action"); err != nil {
		return nil, err
	} else if entry.Msg, err = requiredString(obj, "msg"); err != nil {
		return nil, err
	} else if entry.File, err = optionalString(obj, "file"); err != nil {
		return nil, err
	} else if entry.RawMsg, err = optionalString(obj, "raw_msg"); err != nil {
		return nil, err
	}
	level := obj.Get("level")
	if level == nil {
		return nil, fmt.Errorf("missing field level")
	} else if entry.Level, err = level.Int(); err != nil {
		return nil, fmt.Errorf("field level: %w", err)
	}
	return entry, nil
}

func requiredString(obj *fastjson.Object, key string) (string, error) {
	v := obj.Get(key)
	if v == nil {
		return "", fmt.Errorf("missing field %s", key)
	}
	b, err := v.StringBytes()
	if err != nil {
		return "", fmt.Errorf("field %s: %w", key, err)
	}
	return string(b), nil
}

// optionalString returns nil if the field is absent or null.
func optionalString(obj *fastjson.Object, key string) (*string, error) {
	v := obj.Get(key)
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	b, err := v.StringBytes()
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", key, err)
	}
	s := string(b)
	return &s, nil
}
