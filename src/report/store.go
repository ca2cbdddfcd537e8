package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/flaker/flaker/src/core"
	"github.com/flaker/flaker/src/fs"
)

const (
	jsonExtension    = ".json"
	msgpackExtension = ".msgpack"
	xzExtension      = ".xz"
)

// format returns whether the given filename is msgpack (as opposed to JSON) and xz-compressed.
func format(filename string) (isMsgpack, compressed bool, err error) {
	if strings.HasSuffix(filename, xzExtension) {
		compressed = true
		filename = strings.TrimSuffix(filename, xzExtension)
	}
	if strings.HasSuffix(filename, msgpackExtension) {
		return true, compressed, nil
	} else if strings.HasSuffix(filename, jsonExtension) {
		return false, compressed, nil
	}
	return false, false, fmt.Errorf("Can't determine report format of %s; its name must end in .json or .msgpack, optionally followed by .xz", filename)
}

// Save writes this report to the given file, in a format chosen by the file's extension.
func (r *Report) Save(filename string) error {
	if err := r.save(filename); err != nil {
		return fmt.Errorf("%w %s: %s", core.ErrReportWrite, filename, err)
	}
	log.Notice("Wrote report to %s", filename)
	return nil
}

func (r *Report) save(filename string) error {
	isMsgpack, compressed, err := format(filename)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	var w io.Writer = &buf
	var xw *xz.Writer
	if compressed {
		if xw, err = xz.NewWriter(&buf); err != nil {
			return err
		}
		w = xw
	}
	if err := r.encode(w, isMsgpack); err != nil {
		return err
	}
	if xw != nil {
		if err := xw.Close(); err != nil {
			return err
		}
	}
	return fs.WriteFile(&buf, filename, 0644)
}

func (r *Report) encode(w io.Writer, isMsgpack bool) error {
	if isMsgpack {
		return msgpack.NewEncoder(w).Encode(r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Load reads a report previously written by Save.
func Load(filename string) (*Report, error) {
	isMsgpack, compressed, err := format(filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	if compressed {
		if r, err = xz.NewReader(f); err != nil {
			return nil, fmt.Errorf("Failed to decompress %s: %w", filename, err)
		}
	}
	report, err := decode(r, isMsgpack)
	if err != nil {
		return nil, fmt.Errorf("Failed to read report %s: %w", filename, err)
	}
	return report, nil
}

// LoadAll loads all the given reports.
func LoadAll(filenames []string) ([]*Report, error) {
	reports := make([]*Report, len(filenames))
	for i, filename := range filenames {
		report, err := Load(filename)
		if err != nil {
			return nil, err
		}
		reports[i] = report
	}
	return reports, nil
}

func decode(r io.Reader, isMsgpack bool) (*Report, error) {
	report := &Report{}
	if isMsgpack {
		return report, msgpack.NewDecoder(r).Decode(report)
	}
	return report, json.NewDecoder(r).Decode(report)
}
