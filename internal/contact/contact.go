package contact

import "fmt"

type Record struct {
	Name  string
	Email string
}

// Sequence is a single-pass source of records. Next reports false once the
// sequence is exhausted and keeps doing so on every later call.
type Sequence interface {
	Next() (Record, bool)
}

func NameFor(i int) string {
	return fmt.Sprintf("name-%d", i)
}

func EmailFor(i int) string {
	return fmt.Sprintf("email-%d@domain.tld", i)
}

func At(i int) Record {
	return Record{Name: NameFor(i), Email: EmailFor(i)}
}

// Generator yields At(1) .. At(n) on demand without materializing them.
type Generator struct {
	n   int
	pos int
}

func NewGenerator(n int) *Generator {
	if n < 0 {
		n = 0
	}
	return &Generator{n: n}
}

func (g *Generator) Next() (Record, bool) {
	if g.pos >= g.n {
		return Record{}, false
	}
	g.pos++
	return At(g.pos), true
}

// Position returns the index of the last record handed out, 0 before the
// first call to Next.
func (g *Generator) Position() int {
	return g.pos
}

func (g *Generator) Len() int {
	return g.n
}

// SliceSequence replays a fixed list of records.
type SliceSequence struct {
	records []Record
	pos     int
}

func NewSliceSequence(records ...Record) *SliceSequence {
	return &SliceSequence{records: records}
}

func (s *SliceSequence) Next() (Record, bool) {
	if s.pos >= len(s.records) {
		return Record{}, false
	}
	r := s.records[s.pos]
	s.pos++
	return r, true
}
