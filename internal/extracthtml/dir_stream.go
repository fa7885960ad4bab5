package extracthtml

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"inspector/internal/dom"
)

// SourceFileKey is added to every row produced by StreamFromDir.
const SourceFileKey = "source_file"

// StreamFromDir writes a single JSON array to w holding the rows extracted
// from every .html file in dir, in filename order. Each row gets
// "source_file". Unreadable or unparseable files are skipped.
func StreamFromDir(w io.Writer, dir string, rules []FieldRule, opts Options) (int, error) {
	if len(rules) == 0 {
		return 0, ErrNoSelectors
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if _, err := io.WriteString(w, "["); err != nil {
		return 0, fmt.Errorf("write [: %w", err)
	}

	n := 0
	for _, e := range entries {
		if e.IsDir() || !isHTMLFile(e.Name()) {
			continue
		}

		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		snap, err := dom.Parse(f, e.Name())
		_ = f.Close()
		if err != nil {
			continue
		}

		res, err := Run(snap, rules, opts)
		if err != nil {
			return n, err
		}
		for _, row := range res.Rows {
			row.Set(SourceFileKey, e.Name())
			if n > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return n, fmt.Errorf("write comma: %w", err)
				}
			}
			if err := enc.Encode(row); err != nil {
				return n, fmt.Errorf("encode row: %w", err)
			}
			n++
		}
	}

	if _, err := io.WriteString(w, "]"); err != nil {
		return n, fmt.Errorf("write ]: %w", err)
	}
	return n, nil
}

func isHTMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}
