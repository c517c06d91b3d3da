package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"grid-backtester/internal/interfaces"
	"grid-backtester/internal/types"
)

type csvExporter struct {
	dir string
}

// NewExporter writes each table to <dir>/<run id>/<table>.csv.
func NewExporter(dir string) interfaces.ReportExporter {
	return &csvExporter{dir: dir}
}

// RunDir is where an exporter rooted at dir puts the tables of runID.
func RunDir(dir, runID string) string {
	return filepath.Join(dir, runID)
}

func (e *csvExporter) Export(ctx context.Context, res *types.BacktestResult) ([]string, error) {
	if res == nil {
		return nil, errors.New("report: nil result")
	}
	outDir := RunDir(e.dir, res.RunID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for _, t := range Build(res) {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := filepath.Join(outDir, t.Name+".csv")
		if err := writeFile(path, t); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, t); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
