// Package archive builds and reads the in-memory tar archives used to
// stage files into a sandbox and to retrieve the runner's result file.
package archive

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"judgemicro/pkg/errors"
)

// ConfigFileName is the runner-contract name for the test configuration.
const ConfigFileName = "config.json"

// ResultFileName is the runner-contract name for the result file.
const ResultFileName = "result.json"

// PackStage builds a two-entry archive holding the user source and the
// marshaled config. Entries carry mode 0644, a current mtime and the
// regular-file type so uploads overwrite previously staged files.
func PackStage(source []byte, sourceName string, config []byte) ([]byte, error) {
	return pack(
		entry{name: sourceName, data: source},
		entry{name: ConfigFileName, data: config},
	)
}

// PackUserOnly builds an archive holding only the user source file.
// Batch-optimized mode stages it once before the shared compile.
func PackUserOnly(source []byte, sourceName string) ([]byte, error) {
	return pack(entry{name: sourceName, data: source})
}

// PackConfigOnly builds an archive holding only config.json so a new
// test configuration can be swapped in without disturbing compiled
// artifacts.
func PackConfigOnly(config []byte) ([]byte, error) {
	return pack(entry{name: ConfigFileName, data: config})
}

// MarshalConfig renders a config object the way the runner expects it:
// two-space indented JSON.
func MarshalConfig(config any) ([]byte, error) {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, errors.ConfigInvalid, "marshal config")
	}
	return data, nil
}

// ExtractResult walks the archive and returns the content of the first
// regular file named result.json.
func ExtractResult(r io.Reader) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.ArchiveIOFailed, "read result archive")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if !strings.HasSuffix(hdr.Name, ResultFileName) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ArchiveIOFailed, "read result entry")
		}
		return data, nil
	}
	return nil, errors.New(errors.ResultMissing).WithMessage("result file not found in archive")
}

type entry struct {
	name string
	data []byte
}

func pack(entries ...entry) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	now := time.Now()
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Size:     int64(len(e.data)),
			Mode:     0o644,
			ModTime:  now,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, errors.Wrapf(err, errors.ArchiveIOFailed, "write header for %s", e.name)
		}
		if _, err := tw.Write(e.data); err != nil {
			return nil, errors.Wrapf(err, errors.ArchiveIOFailed, "write %s", e.name)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, errors.Wrapf(err, errors.ArchiveIOFailed, "close archive")
	}
	return buf.Bytes(), nil
}
