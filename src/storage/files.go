// Package storage reads and writes the pipeline's snapshot files. Every write
// goes to a temporary file that is renamed into place, so a reader only ever
// sees a complete file from some run.
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"spendlens/src/models"
)

const (
	RawTransactionsFile = "raw_transactions.csv"
	ExpensesFile        = "transactions.csv"
	SummaryFile         = "spending_summary.csv"
)

var (
	transactionHeader = []string{"transaction_id", "date", "amount", "category", "merchant_name", "pending"}
	summaryHeader     = []string{"category", "amount"}
)

// EmptyInputError reports that a stage's input file does not exist yet.
type EmptyInputError struct {
	Path  string
	Stage string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s not found, run the %s stage first", e.Path, e.Stage)
}

// Dir is a data directory holding one run's artifacts.
type Dir struct {
	Path string
}

func NewDir(path string) Dir {
	return Dir{Path: path}
}

func (d Dir) File(name string) string {
	return filepath.Join(d.Path, name)
}

func (d Dir) WriteRawTransactions(txns []models.Transaction) error {
	return WriteAtomic(d.File(RawTransactionsFile), transactionsCSV(txns))
}

func (d Dir) ReadRawTransactions() ([]models.Transaction, error) {
	return readTransactions(d.File(RawTransactionsFile), "fetch")
}

func (d Dir) ReadExpenses() ([]models.Transaction, error) {
	return readTransactions(d.File(ExpensesFile), "process")
}

// WriteProcessed replaces the expense and summary files together. Neither is
// renamed into place unless both were written.
func (d Dir) WriteProcessed(expenses []models.Transaction, summary []models.CategoryTotal) error {
	return WriteAllAtomic(
		AtomicFile{Path: d.File(ExpensesFile), Write: transactionsCSV(expenses)},
		AtomicFile{Path: d.File(SummaryFile), Write: summaryCSV(summary)},
	)
}

func (d Dir) ReadSummary() ([]models.CategoryTotal, error) {
	path := d.File(SummaryFile)
	rows, err := readRows(path, "process", summaryHeader)
	if err != nil {
		return nil, err
	}

	summary := make([]models.CategoryTotal, 0, len(rows))
	for i, row := range rows {
		amount, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid amount %q: %w", path, i+2, row[1], err)
		}
		summary = append(summary, models.CategoryTotal{Category: row[0], Amount: amount})
	}
	return summary, nil
}

func transactionsCSV(txns []models.Transaction) func(io.Writer) error {
	return func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(transactionHeader); err != nil {
			return err
		}
		for _, t := range txns {
			record := []string{
				t.ID,
				t.Date.Format(models.DateLayout),
				t.Amount.String(),
				t.Category,
				t.MerchantName,
				strconv.FormatBool(t.Pending),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
}

func summaryCSV(summary []models.CategoryTotal) func(io.Writer) error {
	return func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(summaryHeader); err != nil {
			return err
		}
		for _, row := range summary {
			if err := cw.Write([]string{row.Category, row.Amount.String()}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
}

func readTransactions(path, stage string) ([]models.Transaction, error) {
	rows, err := readRows(path, stage, transactionHeader)
	if err != nil {
		return nil, err
	}

	txns := make([]models.Transaction, 0, len(rows))
	for i, row := range rows {
		line := i + 2
		date, err := time.Parse(models.DateLayout, row[1])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid date %q: %w", path, line, row[1], err)
		}
		amount, err := decimal.NewFromString(row[2])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid amount %q: %w", path, line, row[2], err)
		}
		pending, err := strconv.ParseBool(row[5])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid pending flag %q: %w", path, line, row[5], err)
		}
		category := row[3]
		if category == "" {
			category = "Other"
		}
		txns = append(txns, models.Transaction{
			ID:           row[0],
			Date:         date,
			Amount:       amount,
			Category:     category,
			MerchantName: row[4],
			Pending:      pending,
		})
	}
	return txns, nil
}

// readRows returns the data rows of a CSV file whose first row must equal header.
func readRows(path, stage string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &EmptyInputError{Path: path, Stage: stage}
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	for i, col := range header {
		if records[0][i] != col {
			return nil, fmt.Errorf("read %s: unexpected header %v", path, records[0])
		}
	}
	return records[1:], nil
}

// AtomicFile is one target of WriteAllAtomic.
type AtomicFile struct {
	Path  string
	Write func(w io.Writer) error
}

// WriteAtomic writes path through a temporary file in the same directory and
// renames it into place once write succeeds. On failure the previous file is
// left untouched.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	return WriteAllAtomic(AtomicFile{Path: path, Write: write})
}

// WriteAllAtomic writes every file to a temporary file first and renames them
// into place only after all writes succeeded. If any write fails no target
// is touched.
func WriteAllAtomic(files ...AtomicFile) error {
	staged := make([]string, 0, len(files))
	cleanup := func() {
		for _, tmp := range staged {
			os.Remove(tmp)
		}
	}

	for _, f := range files {
		tmp, err := stageFile(f.Path, f.Write)
		if err != nil {
			cleanup()
			return err
		}
		staged = append(staged, tmp)
	}

	for i, f := range files {
		if err := os.Rename(staged[i], f.Path); err != nil {
			staged = staged[i:]
			cleanup()
			return fmt.Errorf("rename into %s: %w", f.Path, err)
		}
	}
	return nil
}

// stageFile writes a synced temporary file next to path and returns its name.
func stageFile(path string, write func(w io.Writer) error) (name string, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return tmp.Name(), nil
}
