// Package tradelog journals finished backtests as JSON lines: one file per
// run holding a header line, every executed trade and a closing summary.
package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"grid-backtester/internal/types"
)

var mu sync.Mutex

const (
	KindRun     = "run"
	KindTrade   = "trade"
	KindSummary = "summary"
)

// Entry is one journal line. Only the fields of its Kind are set.
type Entry struct {
	Kind     string         `json:"kind"`
	RunID    string         `json:"run_id"`
	Time     string         `json:"time"`
	Symbol   string         `json:"symbol,omitempty"`
	Side     string         `json:"side,omitempty"`
	Level    int            `json:"level,omitempty"`
	GridType string         `json:"grid_type,omitempty"`
	Qty      float64        `json:"qty,omitempty"`
	Price    float64        `json:"price,omitempty"`
	Value    float64        `json:"value,omitempty"`
	Clamped  bool           `json:"clamped,omitempty"`
	Orphan   bool           `json:"orphan,omitempty"`
	Summary  *types.Summary `json:"summary,omitempty"`
	XIRR     *float64       `json:"xirr,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Path is the journal file of runID under dir.
func Path(dir, runID string) string {
	return filepath.Join(dir, runID+".jsonl")
}

// WriteRun journals res to dir and returns the file path. An existing
// journal for the same run is replaced.
func WriteRun(dir string, res *types.BacktestResult) (string, error) {
	mu.Lock()
	defer mu.Unlock()

	p := Path(dir, res.RunID)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	sum := res.Summary
	if err := writeLine(w, Entry{
		Kind:   KindRun,
		RunID:  res.RunID,
		Time:   time.Now().UTC().Format(time.RFC3339),
		Symbol: sum.Symbol,
		Extra: map[string]any{
			"initial_capital": sum.InitialCapital,
			"start":           formatTime(sum.Start),
			"end":             formatTime(sum.End),
			"cancelled":       res.Cancelled,
		},
	}); err != nil {
		return "", err
	}

	for _, t := range res.Trades {
		if err := writeLine(w, Entry{
			Kind:     KindTrade,
			RunID:    res.RunID,
			Time:     formatTime(t.Time),
			Symbol:   sum.Symbol,
			Side:     string(t.Side),
			Level:    t.Level,
			GridType: string(t.GridType),
			Qty:      t.Amount,
			Price:    t.Price,
			Value:    t.Value,
			Clamped:  t.Clamped,
			Orphan:   t.Orphan,
		}); err != nil {
			return "", err
		}
	}

	if err := writeLine(w, Entry{
		Kind:    KindSummary,
		RunID:   res.RunID,
		Time:    formatTime(sum.End),
		Symbol:  sum.Symbol,
		Summary: &sum,
		XIRR:    res.XIRR,
	}); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return p, nil
}

// ReadRun loads a journal back. Lines that do not parse are skipped.
func ReadRun(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func writeLine(w io.Writer, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// CompressOlder gzips journals in dir last modified more than retentionDays ago.
func CompressOlder(dir string, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, er := d.Info()
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}

		gz := p + ".gz"
		// already compressed earlier, only the original is left over
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err == nil {
			_ = os.Remove(p)
		}
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
