package store

import (
	"fmt"
	"strconv"
	"strings"
)

type Dialect struct {
	Name     string
	numbered bool
}

var (
	SQLite   = Dialect{Name: "sqlite3"}
	Postgres = Dialect{Name: "postgres", numbered: true}
)

func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported driver: %q", name)
	}
}

func (d Dialect) String() string {
	return d.Name
}

// Rebind rewrites ? placeholders into the dialect's bind style. Queries must
// not carry literal question marks.
func (d Dialect) Rebind(query string) string {
	if !d.numbered || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
