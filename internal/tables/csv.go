package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/greenbier/propedge/internal/apperr"
	"github.com/greenbier/propedge/internal/models"
)

// ErrMissingColumn is returned when a required header is absent
var ErrMissingColumn = errors.New("missing column")

// record gives named access to one CSV row
type record struct {
	cols map[string]int
	row  []string
	line int
	err  error
}

func (r *record) fail(col string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("line %d, column %s: %w", r.line, col, err)
	}
}

func (r *record) str(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.row) {
		return ""
	}
	return strings.TrimSpace(r.row[i])
}

func (r *record) num(col string) float64 {
	s := r.str(col)
	if s == "" {
		r.fail(col, errors.New("empty value"))
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(col, err)
	}
	return v
}

func (r *record) optNum(col string) float64 {
	if r.str(col) == "" {
		return 0
	}
	return r.num(col)
}

func (r *record) count(col string) int {
	s := r.str(col)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		r.fail(col, err)
	}
	return v
}

func (r *record) optCount(col string) *int {
	if r.str(col) == "" {
		return nil
	}
	v := r.count(col)
	return &v
}

func (r *record) flag(col string) bool {
	switch strings.ToLower(r.str(col)) {
	case "", "0", "false", "f", "no", "away":
		return false
	case "1", "true", "t", "yes", "home":
		return true
	}
	r.fail(col, fmt.Errorf("invalid boolean %q", r.str(col)))
	return false
}

func (r *record) date(col string) time.Time {
	t, err := time.Parse(models.DateLayout, r.str(col))
	if err != nil {
		r.fail(col, err)
	}
	return t
}

func (r *record) timestamp(col string) time.Time {
	s := r.str(col)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		r.fail(col, err)
	}
	return t
}

// readCSV streams rows to fn. Headers are matched by name so column order is free.
func readCSV(rd io.Reader, required []string, fn func(*record) error) error {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return apperr.Validation("read table", errors.New("empty file"))
	}
	if err != nil {
		return apperr.Validation("read table", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return apperr.Validation("read table", fmt.Errorf("%w: %s", ErrMissingColumn, c))
		}
	}

	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return apperr.Validation("read table", err)
		}
		rec := &record{cols: cols, row: row, line: line}
		if err := fn(rec); err != nil {
			return err
		}
		if rec.err != nil {
			return apperr.Validation("read table", rec.err)
		}
	}
}

func readFile(path string, required []string, fn func(*record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	if err := readCSV(f, required, fn); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func writeCSV(w io.Writer, header []string, rows func(emit func([]string) error) error) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := rows(cw.Write); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func writeFile(path string, header []string, rows func(emit func([]string) error) error) error {
	err := WriteFileAtomic(path, func(w io.Writer) error {
		return writeCSV(w, header, rows)
	})
	if err != nil {
		return apperr.Persistence("write table", err)
	}
	return nil
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fb(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func fd(t time.Time) string {
	return t.Format(models.DateLayout)
}

func fts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func itoa(v int) string {
	return strconv.Itoa(v)
}

func fopt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
