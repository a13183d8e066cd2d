// Package zip builds the downloadable bundle of a session: the original
// source images plus the edited result, archived in one pass.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

type Entry struct {
	Name string
	Data []byte
}

// Archive writes the entries into a zip in order. Duplicate names get a
// numeric suffix before the extension so no entry shadows another.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		name := uniqueName(seen, e.Name)
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create entry %s: %w", name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func uniqueName(seen map[string]int, name string) string {
	if name == "" {
		name = "file"
	}
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := ""
	base := name
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == '.' {
			base, ext = name[:i], name[i:]
			break
		}
	}
	return fmt.Sprintf("%s-%d%s", base, n, ext)
}
