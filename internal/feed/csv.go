package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"grid-backtester/internal/interfaces"
	"grid-backtester/internal/types"
)

var ErrBadRow = errors.New("bad price row")

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"20060102",
}

var (
	timeHeaders  = []string{"time", "timestamp", "date", "datetime", "ts"}
	priceHeaders = []string{"price", "close", "last"}
)

// CSV is a feed over a time,price table. Rows are parsed lazily so that a
// bad row surfaces as an error from Next and the caller can skip it.
type CSV struct {
	rows     [][]string
	timeCol  int
	priceCol int
	loc      *time.Location
	pos      int
}

var _ interfaces.PriceFeed = (*CSV)(nil)

// OpenCSV reads a whole price file. UTF-8 and BOM-marked UTF-16 input are
// both accepted.
func OpenCSV(path string, loc *time.Location) (*CSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening price file: %w", err)
	}
	defer f.Close()
	return NewCSV(f, loc)
}

func NewCSV(r io.Reader, loc *time.Location) (*CSV, error) {
	if loc == nil {
		loc = time.UTC
	}
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(dec)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading price csv: %w", err)
	}

	c := &CSV{timeCol: 0, priceCol: 1, loc: loc}
	if len(rows) > 0 && isHeader(rows[0]) {
		c.timeCol = findColumn(rows[0], timeHeaders, 0)
		c.priceCol = findColumn(rows[0], priceHeaders, 1)
		rows = rows[1:]
	}
	c.rows = rows
	return c, nil
}

func isHeader(row []string) bool {
	if len(row) < 2 {
		return false
	}
	for _, cell := range row {
		if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
			return false
		}
	}
	return true
}

func findColumn(header []string, names []string, fallback int) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return fallback
}

func (c *CSV) Len() int { return len(c.rows) }

func (c *CSV) Reset() error {
	c.pos = 0
	return nil
}

func (c *CSV) Next() (types.Tick, error) {
	if c.pos >= len(c.rows) {
		return types.Tick{}, io.EOF
	}
	row := c.rows[c.pos]
	c.pos++
	line := c.pos

	if c.timeCol >= len(row) || c.priceCol >= len(row) {
		return types.Tick{}, fmt.Errorf("%w: row %d has %d columns", ErrBadRow, line, len(row))
	}
	ts, err := parseTime(row[c.timeCol], c.loc)
	if err != nil {
		return types.Tick{}, fmt.Errorf("%w: row %d: %v", ErrBadRow, line, err)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(row[c.priceCol]), 64)
	if err != nil {
		return types.Tick{}, fmt.Errorf("%w: row %d: price %q", ErrBadRow, line, row[c.priceCol])
	}
	return types.Tick{Time: ts, Price: price}, nil
}

// parseTime accepts the layouts above or unix seconds/milliseconds.
func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).In(loc), nil
		}
		return time.Unix(n, 0).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
