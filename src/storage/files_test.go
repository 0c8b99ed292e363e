package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendlens/src/models"
)

func sampleTransactions() []models.Transaction {
	return []models.Transaction{
		{
			ID:           "t1",
			Date:         time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
			Amount:       decimal.RequireFromString("12.5"),
			Category:     "Food, Restaurants",
			MerchantName: "Tacos, Inc",
			Pending:      true,
		},
		{
			ID:           "t2",
			Date:         time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC),
			Amount:       decimal.RequireFromString("-500"),
			Category:     "Other",
			MerchantName: "N/A",
		},
	}
}

func TestDir_TransactionsFile(t *testing.T) {
	dir := NewDir(t.TempDir())

	if err := dir.WriteRawTransactions(sampleTransactions()); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(dir.File(RawTransactionsFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "transaction_id,date,amount,category,merchant_name,pending" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != `t1,2024-05-03,12.5,"Food, Restaurants","Tacos, Inc",true` {
		t.Errorf("unexpected first row %q", lines[1])
	}

	got, err := dir.ReadRawTransactions()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Category != "Food, Restaurants" || !got[0].Pending || !got[1].Amount.Equal(decimal.NewFromInt(-500)) {
		t.Errorf("unexpected rows %+v", got)
	}
}

func TestDir_Summary(t *testing.T) {
	dir := NewDir(t.TempDir())
	summary := []models.CategoryTotal{
		{Category: "Food", Amount: decimal.RequireFromString("30")},
		{Category: "Food, Restaurants", Amount: decimal.RequireFromString("12.5")},
	}

	if err := dir.WriteProcessed(nil, summary); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := dir.ReadSummary()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[1].Category != "Food, Restaurants" || !got[1].Amount.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("unexpected summary %+v", got)
	}
}

func TestDir_EmptyFilesReadAsNoRows(t *testing.T) {
	dir := NewDir(t.TempDir())

	if err := dir.WriteProcessed(nil, nil); err != nil {
		t.Fatal(err)
	}

	expenses, err := dir.ReadExpenses()
	if err != nil || len(expenses) != 0 {
		t.Errorf("expected no rows, got %v %v", expenses, err)
	}
	summary, err := dir.ReadSummary()
	if err != nil || len(summary) != 0 {
		t.Errorf("expected no rows, got %v %v", summary, err)
	}
}

func TestDir_MissingInput(t *testing.T) {
	dir := NewDir(t.TempDir())

	_, err := dir.ReadExpenses()
	var emptyErr *EmptyInputError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected *EmptyInputError, got %v", err)
	}
	if emptyErr.Stage != "process" {
		t.Errorf("expected process stage hint, got %q", emptyErr.Stage)
	}

	_, err = dir.ReadRawTransactions()
	if !errors.As(err, &emptyErr) || emptyErr.Stage != "fetch" {
		t.Errorf("expected fetch stage hint, got %v", err)
	}
}

func TestDir_RejectsMalformedRows(t *testing.T) {
	dir := NewDir(t.TempDir())
	bad := "transaction_id,date,amount,category,merchant_name,pending\nt1,yesterday,1,Food,N/A,false\n"
	if err := os.WriteFile(dir.File(ExpensesFile), []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := dir.ReadExpenses(); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected a line-numbered error, got %v", err)
	}
}

func TestWriteAtomic_FailureKeepsPreviousFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "out.csv")
	if err := os.WriteFile(path, []byte("previous"), 0644); err != nil {
		t.Fatal(err)
	}

	err := WriteAtomic(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "previous" {
		t.Errorf("previous file modified: %q", data)
	}
	entries, _ := os.ReadDir(tmp)
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %v", entries)
	}
}

func TestWriteAtomic_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	if err := WriteAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "ok")
		return err
	}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "ok" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestWriteAllAtomic_FailureTouchesNoTarget(t *testing.T) {
	tmp := t.TempDir()
	first := filepath.Join(tmp, "transactions.csv")
	second := filepath.Join(tmp, "spending_summary.csv")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte("previous"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	err := WriteAllAtomic(
		AtomicFile{Path: first, Write: func(w io.Writer) error {
			_, err := io.WriteString(w, "new")
			return err
		}},
		AtomicFile{Path: second, Write: func(w io.Writer) error {
			return errors.New("disk full")
		}},
	)
	if err == nil {
		t.Fatal("expected error")
	}

	for _, p := range []string{first, second} {
		if data, _ := os.ReadFile(p); string(data) != "previous" {
			t.Errorf("%s modified: %q", filepath.Base(p), data)
		}
	}
	entries, _ := os.ReadDir(tmp)
	if len(entries) != 2 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestDir_WriteProcessed(t *testing.T) {
	dir := NewDir(t.TempDir())
	expenses := []models.Transaction{{
		ID:       "t1",
		Date:     time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.RequireFromString("7.5"),
		Category: "Food",
	}}
	summary := []models.CategoryTotal{{Category: "Food", Amount: decimal.RequireFromString("7.5")}}

	if err := dir.WriteProcessed(expenses, summary); err != nil {
		t.Fatal(err)
	}

	gotExpenses, err := dir.ReadExpenses()
	if err != nil || len(gotExpenses) != 1 {
		t.Fatalf("expected 1 expense, got %v %v", gotExpenses, err)
	}
	gotSummary, err := dir.ReadSummary()
	if err != nil || len(gotSummary) != 1 || gotSummary[0].Category != "Food" {
		t.Fatalf("unexpected summary %v %v", gotSummary, err)
	}
}
