package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/bit2swaz/bulkload/internal/bench"
)

// PrintTimings writes the plain elapsed-seconds lines for the phases that
// completed.
func PrintTimings(w io.Writer, s *bench.Summary) {
	if s == nil {
		return
	}
	if s.Load != nil {
		fmt.Fprintf(w, "Insertion took %s seconds\n", seconds(s.Load.Elapsed))
	}
	if s.Probe != nil {
		fmt.Fprintf(w, "Selection query took %s seconds\n", seconds(s.Probe.Elapsed))
	}
}

func Render(w io.Writer, s *bench.Summary) error {
	table := tablewriter.NewWriter(w)
	table.Header("Setting", "Value")

	rows := [][]string{
		{"Run ID", s.RunID},
		{"Driver", s.Driver},
		{"Target", s.Target},
		{"Records", strconv.Itoa(s.Count)},
		{"Block size", strconv.Itoa(s.BlockSize)},
		{"Migrated", strconv.FormatBool(s.Migrated)},
	}
	if s.Load != nil {
		rows = append(rows,
			[]string{"Rows inserted", strconv.Itoa(s.Load.Rows)},
			[]string{"Transactions", strconv.Itoa(s.Load.Chunks)},
			[]string{"Last chunk size", strconv.Itoa(s.Load.LastChunkSize)},
			[]string{"Insertion (s)", seconds(s.Load.Elapsed)},
			[]string{"Rows/s", rate(s.Load.Rows, s.Load.Elapsed)},
		)
	}
	if s.Probe != nil {
		rows = append(rows,
			[]string{"Probe email", s.Probe.Email},
			[]string{"Probe (s)", seconds(s.Probe.Elapsed)},
		)
	}

	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return fmt.Errorf("failed to append row %q: %w", row[0], err)
		}
	}
	return table.Render()
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func rate(rows int, d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}
	return strconv.FormatFloat(float64(rows)/d.Seconds(), 'f', 0, 64)
}
