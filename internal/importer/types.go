package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SimonWaldherr/parallaxdb/internal/storage"
)

// inferColumnTypes votes per column over the sample and picks the most
// specific type that covers at least 80% of the non-null cells.
func inferColumnTypes(sample [][]string, numCols int, nulls []string) []storage.ColType {
	votes := make([]map[storage.ColType]int, numCols)
	for i := range votes {
		votes[i] = make(map[storage.ColType]int)
	}
	for _, row := range sample {
		for c := range numCols {
			var val string
			if c < len(row) {
				val = strings.TrimSpace(row[c])
			}
			if isNullValue(val, nulls) {
				continue
			}
			votes[c][detectValueType(val)]++
		}
	}
	types := make([]storage.ColType, numCols)
	for c := range types {
		types[c] = determineColumnType(votes[c])
	}
	return types
}

// detectValueType returns the most specific type val parses as. The digits
// 0 and 1 count as integers; only words vote for BOOLEAN.
func detectValueType(val string) storage.ColType {
	if _, ok := parseBoolWord(val); ok {
		return storage.BoolType
	}
	if _, err := strconv.ParseInt(val, 10, 64); err == nil {
		return storage.IntType
	}
	if _, err := strconv.ParseFloat(val, 64); err == nil {
		return storage.DoubleType
	}
	return storage.StringType
}

func determineColumnType(votes map[storage.ColType]int) storage.ColType {
	total := 0
	for _, n := range votes {
		total += n
	}
	if total == 0 {
		return storage.StringType
	}
	threshold := float64(total) * 0.80
	ints, doubles := votes[storage.IntType], votes[storage.DoubleType]
	switch {
	case float64(votes[storage.BoolType]) >= threshold:
		return storage.BoolType
	case float64(ints) >= threshold && doubles == 0:
		return storage.IntType
	case float64(ints+doubles) >= threshold:
		return storage.DoubleType
	}
	return storage.StringType
}

func isNullValue(val string, nulls []string) bool {
	v := strings.TrimSpace(val)
	for _, n := range nulls {
		if strings.EqualFold(v, strings.TrimSpace(n)) {
			return true
		}
	}
	return false
}

func parseBoolWord(val string) (int64, bool) {
	switch strings.ToLower(val) {
	case "true", "yes", "t", "y":
		return 1, true
	case "false", "no", "f", "n":
		return 0, true
	}
	return 0, false
}

// convertValue parses one cell for a column of type t.
func convertValue(val string, t storage.ColType, nulls []string) (storage.Value, error) {
	val = strings.TrimSpace(val)
	if isNullValue(val, nulls) {
		return storage.Null(), nil
	}
	switch t {
	case storage.IntType:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return storage.Value{}, fmt.Errorf("%w: %q is not an integer", storage.ErrType, val)
		}
		return storage.Int(n), nil
	case storage.DoubleType:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return storage.Value{}, fmt.Errorf("%w: %q is not a number", storage.ErrType, val)
		}
		return storage.Double(f), nil
	case storage.BoolType:
		if n, ok := parseBoolWord(val); ok {
			return storage.Int(n), nil
		}
		switch val {
		case "0":
			return storage.Int(0), nil
		case "1":
			return storage.Int(1), nil
		}
		return storage.Value{}, fmt.Errorf("%w: %q is not a boolean", storage.ErrType, val)
	}
	return storage.Text(val), nil
}

// convertRecord converts rec into a row for columns of the given types.
func convertRecord(rec []string, types []storage.ColType, nulls []string) (storage.Row, error) {
	if len(rec) != len(types) {
		return nil, fmt.Errorf("%w: %d fields, want %d", storage.ErrType, len(rec), len(types))
	}
	row := make(storage.Row, len(rec))
	for i, cell := range rec {
		v, err := convertValue(cell, types[i], nulls)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}
