// Package artifact reads and writes the offline ranking artifacts as
// versioned binary blobs. Every blob starts with a header naming its kind
// and schema version; a reader that sees an unknown combination refuses to
// load instead of guessing.
package artifact

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

const magic = "tuesearch-artifact"

type header struct {
	Magic   string
	Kind    string
	Version int
}

// Save writes v to path, prefixed with a kind+version header. The write
// goes through a temp file and rename so readers never see a torn blob.
func Save(path, kind string, version int, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := gob.NewEncoder(tmp)
	if err := enc.Encode(header{Magic: magic, Kind: kind, Version: version}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode artifact header: %w", err)
	}
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode artifact %q: %w", kind, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// Load reads the blob at path into v, verifying kind and version first.
func Load(path, kind string, version int, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact %q: %w", path, err)
	}
	defer f.Close()

	dec := gob.NewDecoder(f)
	var h header
	if err := dec.Decode(&h); err != nil {
		return fmt.Errorf("decode artifact header: %w", err)
	}
	if h.Magic != magic {
		return fmt.Errorf("artifact %q: not a tuesearch artifact", path)
	}
	if h.Kind != kind {
		return fmt.Errorf("artifact %q: kind %q, want %q", path, h.Kind, kind)
	}
	if h.Version != version {
		return fmt.Errorf("artifact %q: unsupported %s version %d (reader supports %d)", path, kind, h.Version, version)
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode artifact %q: %w", kind, err)
	}
	return nil
}
