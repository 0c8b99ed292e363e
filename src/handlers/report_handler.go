package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"spendlens/src/chart"
	"spendlens/src/db"
	"spendlens/src/logger"
	"spendlens/src/models"
	"spendlens/src/process"
	"spendlens/src/storage"
)

var chartFiles = map[string]string{
	"category": chart.CategoryChartFile,
	"daily":    chart.DailyChartFile,
}

func GetSummary(dir storage.Dir, cache *db.ReportCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := cache.Load(dir.File(storage.SummaryFile), func() (any, error) {
			return dir.ReadSummary()
		})
		if err != nil {
			writeLoadError(w, r, err)
			return
		}

		summary := v.([]models.CategoryTotal)
		if summary == nil {
			summary = []models.CategoryTotal{}
		}
		writeJSON(w, summary)
	}
}

func GetExpenses(dir storage.Dir, cache *db.ReportCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expenses, err := loadExpenses(dir, cache)
		if err != nil {
			writeLoadError(w, r, err)
			return
		}
		writeJSON(w, expenses)
	}
}

func GetDailyTotals(dir storage.Dir, cache *db.ReportCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expenses, err := loadExpenses(dir, cache)
		if err != nil {
			writeLoadError(w, r, err)
			return
		}

		daily := process.DailyTotals(expenses)
		if daily == nil {
			daily = []models.DailyTotal{}
		}
		writeJSON(w, daily)
	}
}

func GetChart(dir storage.Dir, cache *db.ReportCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := chartFiles[chi.URLParam(r, "name")]
		if !ok {
			http.Error(w, "unknown chart, expected 'category' or 'daily'", http.StatusNotFound)
			return
		}

		path := dir.File(name)
		v, err := cache.Load(path, func() (any, error) {
			data, err := os.ReadFile(path)
			if errors.Is(err, os.ErrNotExist) {
				return nil, &storage.EmptyInputError{Path: path, Stage: "chart"}
			}
			return data, err
		})
		if err != nil {
			writeLoadError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Write(v.([]byte))
	}
}

func ClearCache(cache *db.ReportCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cache.Clear()
		log := logger.FromContext(r.Context())
		log.Info().Msg("Cleared report cache")
		w.WriteHeader(http.StatusNoContent)
	}
}

func loadExpenses(dir storage.Dir, cache *db.ReportCache) ([]models.Transaction, error) {
	v, err := cache.Load(dir.File(storage.ExpensesFile), func() (any, error) {
		return dir.ReadExpenses()
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Transaction), nil
}

// writeLoadError answers 404 with the operator hint when an artifact has not
// been produced yet, and 500 otherwise.
func writeLoadError(w http.ResponseWriter, r *http.Request, err error) {
	var empty *storage.EmptyInputError
	if errors.As(err, &empty) {
		http.Error(w, empty.Error(), http.StatusNotFound)
		return
	}
	log := logger.FromContext(r.Context())
	log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to load report")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
