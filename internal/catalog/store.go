package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"
)

// Record is one catalog row keyed by column name. Records are owned by the
// store; callers republish them verbatim and never mutate them.
type Record = map[string]any

// Store is the backing catalog the server reads and writes.
type Store interface {
	// QueryAll returns every record ordered by identity.
	QueryAll(ctx context.Context) ([]Record, error)

	// QueryNew returns records whose identity is greater than sinceID,
	// ordered by identity.
	QueryNew(ctx context.Context, sinceID int64) ([]Record, error)

	// Insert stores fields as a new record and returns the row as stored,
	// including its generated identity.
	Insert(ctx context.Context, fields map[string]any) (Record, error)

	// MaxID returns the largest identity currently stored, or 0 when empty.
	MaxID(ctx context.Context) (int64, error)
}

// TableConfig names the table holding the records and its identity column.
type TableConfig struct {
	Name     string
	IDColumn string
}

// DefaultTable is the marketplace product table.
var DefaultTable = TableConfig{Name: "producto", IDColumn: "idProducto"}

// StorageError wraps a failed store operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// RecordID extracts the integer identity of r from column. It accepts every
// numeric representation a store or JSON decoder may hand back.
func RecordID(r Record, column string) (int64, bool) {
	switch v := r[column].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	case decimal.Decimal:
		if !v.IsInteger() {
			return 0, false
		}
		return v.IntPart(), true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	default:
		return 0, false
	}
}

// SortByID orders records ascending by identity. Records without a readable
// identity sort first.
func SortByID(records []Record, column string) {
	slices.SortStableFunc(records, func(a, b Record) int {
		ia, _ := RecordID(a, column)
		ib, _ := RecordID(b, column)
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		default:
			return 0
		}
	})
}
