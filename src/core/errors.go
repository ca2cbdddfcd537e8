package core

import "errors"

// ErrSpawnFailed is returned when the OS refuses to launch a parser.
var ErrSpawnFailed = errors.New("failed to spawn parser")

// ErrEncoding is returned when a parser emits output that isn't valid UTF-8 where it's required to be.
var ErrEncoding = errors.New("parser output is not valid UTF-8")

// ErrProtocolViolation is returned when a parser's log output doesn't follow the expected format.
var ErrProtocolViolation = errors.New("parser log protocol violation")

// ErrWalk is returned for entries of the corpus that can't be walked.
var ErrWalk = errors.New("failed to walk corpus entry")

// ErrReportWrite is returned when a report can't be persisted.
var ErrReportWrite = errors.New("failed to write report")
