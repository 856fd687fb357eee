package backtest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"grid-executor/internal/model"
)

// LoadKlinesFromCSV reads "timestamp,open,high,low,close,volume" rows with a header line.
// Timestamps are unix milliseconds or seconds.
func LoadKlinesFromCSV(filePath string) ([]model.KlineData, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "open price history")
	}
	defer f.Close()
	return ReadKlines(f)
}

func ReadKlines(r io.Reader) ([]model.KlineData, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}

	var klines []model.KlineData
	for i, row := range rows {
		if i == 0 && !isNumber(row[0]) {
			continue
		}
		if len(row) < 6 {
			return nil, errors.Errorf("line %d: expected 6 columns, got %d", i+1, len(row))
		}
		values := make([]float64, 6)
		for j := 0; j < 6; j++ {
			if values[j], err = strconv.ParseFloat(strings.TrimSpace(row[j]), 64); err != nil {
				return nil, errors.Wrapf(err, "line %d column %d", i+1, j+1)
			}
		}
		klines = append(klines, model.KlineData{
			Start:  toTime(int64(values[0])),
			Open:   values[1],
			High:   values[2],
			Low:    values[3],
			Close:  values[4],
			Volume: values[5],
		})
	}
	if len(klines) == 0 {
		return nil, errors.New("price history is empty")
	}
	return klines, nil
}

// Closes extracts close prices in file order.
func Closes(klines []model.KlineData) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func toTime(ts int64) time.Time {
	if ts > 1e12 {
		return time.UnixMilli(ts)
	}
	return time.Unix(ts, 0)
}
