package persistence

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
)

// Migration is one SQL file applied in name order.
type Migration struct {
	Name string
	SQL  string
}

// LoadMigrations reads every .sql file under dir in fsys, sorted by file name.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	out := make([]Migration, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if len(content) == 0 {
			continue
		}
		out = append(out, Migration{Name: entry.Name(), SQL: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
