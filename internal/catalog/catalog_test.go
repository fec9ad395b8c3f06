package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func TestNormalize_MapsAliasesCaseInsensitively(t *testing.T) {
	n := DefaultNormalizer(nil)

	out, err := n.Normalize(map[string]any{
		"NOMBRE":    "Mate",
		"Precio":    json.Number("9.99"),
		"stock":     json.Number("5"),
		"ImagenUrl": "http://img",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out["nombreProducto"] != "Mate" {
		t.Errorf("expected nombreProducto=Mate, got %v", out["nombreProducto"])
	}
	price, ok := out["precio"].(decimal.Decimal)
	if !ok || !price.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("expected precio decimal 9.99, got %#v", out["precio"])
	}
	if out["stock"] != int64(5) {
		t.Errorf("expected stock int64(5), got %#v", out["stock"])
	}
	if out["imagenURL"] != "http://img" {
		t.Errorf("expected imagenURL to be mapped, got %v", out["imagenURL"])
	}
	if out["descripcion"] != "" {
		t.Errorf("expected default descripcion, got %v", out["descripcion"])
	}
}

func TestNormalize_Defaults(t *testing.T) {
	out, err := DefaultNormalizer(nil).Normalize(map[string]any{"nombreProducto": "X"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["stock"] != int64(1) {
		t.Errorf("expected default stock 1, got %v", out["stock"])
	}
	if out["imagenURL"] != "" {
		t.Errorf("expected default imagenURL, got %v", out["imagenURL"])
	}
}

func TestNormalize_CanonicalWinsOverAlias(t *testing.T) {
	out, err := DefaultNormalizer(nil).Normalize(map[string]any{
		"nombre":         "alias",
		"nombreProducto": "canonical",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["nombreProducto"] != "canonical" {
		t.Errorf("expected canonical value to win, got %v", out["nombreProducto"])
	}
	if _, ok := out["nombre"]; ok {
		t.Error("alias key should not survive normalization")
	}
}

func TestNormalize_UnknownKeysPassThrough(t *testing.T) {
	out, err := DefaultNormalizer(nil).Normalize(map[string]any{"nombre": "X", "color": "red"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["color"] != "red" {
		t.Errorf("expected unknown key to pass through, got %v", out["color"])
	}
}

func TestNormalize_Empty(t *testing.T) {
	if _, err := DefaultNormalizer(nil).Normalize(nil); !errors.Is(err, ErrEmptyProduct) {
		t.Errorf("expected ErrEmptyProduct, got %v", err)
	}
}

func TestNormalize_ExtraAliases(t *testing.T) {
	n := DefaultNormalizer(map[string]string{"title": "nombreProducto"})
	out, err := n.Normalize(map[string]any{"Title": "Y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["nombreProducto"] != "Y" {
		t.Errorf("expected configured alias to apply, got %v", out)
	}
}

func TestParseAliases(t *testing.T) {
	aliases, err := ParseAliases(" nombre = nombreProducto, price=precio ,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(aliases) != 2 || aliases["nombre"] != "nombreProducto" || aliases["price"] != "precio" {
		t.Errorf("unexpected aliases %v", aliases)
	}

	if _, err := ParseAliases("broken"); err == nil {
		t.Error("expected error for pair without '='")
	}
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		value any
		want  int64
		ok    bool
	}{
		{int64(4), 4, true},
		{int32(5), 5, true},
		{6, 6, true},
		{float64(7), 7, true},
		{7.5, 0, false},
		{json.Number("8"), 8, true},
		{decimal.NewFromInt(9), 9, true},
		{"10", 10, true},
		{nil, 0, false},
	}

	for _, tc := range tests {
		got, ok := RecordID(Record{"id": tc.value}, "id")
		if got != tc.want || ok != tc.ok {
			t.Errorf("RecordID(%#v) = (%d, %v), want (%d, %v)", tc.value, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSortByID(t *testing.T) {
	records := []Record{{"id": int64(3)}, {"id": int64(1)}, {"id": int64(2)}}
	SortByID(records, "id")
	for i, r := range records {
		if r["id"] != int64(i+1) {
			t.Fatalf("expected ascending order, got %v", records)
		}
	}
}

func TestMemoryStore_InsertAndQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")

	first, err := s.Insert(ctx, map[string]any{"nombreProducto": "A"})
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if first["idProducto"] != int64(1) {
		t.Errorf("expected generated id 1, got %v", first["idProducto"])
	}

	if _, err := s.Insert(ctx, map[string]any{"nombreProducto": "B"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	all, err := s.QueryAll(ctx)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}

	newer, err := s.QueryNew(ctx, 1)
	if err != nil {
		t.Fatalf("query new failed: %v", err)
	}
	if len(newer) != 1 || newer[0]["nombreProducto"] != "B" {
		t.Errorf("expected only record B, got %v", newer)
	}

	max, err := s.MaxID(ctx)
	if err != nil || max != 2 {
		t.Errorf("expected max id 2, got %d (%v)", max, err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("id")
	r, _ := s.Insert(ctx, map[string]any{"name": "A"})
	r["name"] = "mutated"

	all, _ := s.QueryAll(ctx)
	if all[0]["name"] != "A" {
		t.Error("store records must not be mutated through returned values")
	}
}

func TestMemoryStore_FailNextIsOneShot(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")
	s.FailNext(errors.New("boom"))

	_, err := s.QueryAll(ctx)
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}

	if _, err := s.QueryAll(ctx); err != nil {
		t.Errorf("failure should not persist, got %v", err)
	}
}

func TestColumnValue(t *testing.T) {
	n := pgtype.Numeric{Int: big.NewInt(999), Exp: -2, Valid: true}
	d, ok := columnValue(n).(decimal.Decimal)
	if !ok || !d.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("expected decimal 9.99, got %#v", columnValue(n))
	}

	if columnValue(pgtype.Numeric{}) != nil {
		t.Error("expected NULL numeric to map to nil")
	}
	if columnValue(int32(4)) != int64(4) {
		t.Error("expected int32 to widen to int64")
	}
}

func TestPostgresStore_InsertSQL(t *testing.T) {
	s := NewPostgresStore(nil, TableConfig{})
	sql, args := s.insertSQL(map[string]any{"stock": int64(1), "nombreProducto": "X"})

	want := `INSERT INTO "producto" ("nombreProducto", "stock") VALUES ($1, $2) RETURNING *`
	if sql != want {
		t.Errorf("expected %s, got %s", want, sql)
	}
	if len(args) != 2 || args[0] != "X" || args[1] != int64(1) {
		t.Errorf("unexpected args %v", args)
	}
}

func TestPostgresStore_QuotesIdentifiers(t *testing.T) {
	s := NewPostgresStore(nil, TableConfig{Name: `evil"; DROP`, IDColumn: "id"})
	if !strings.HasPrefix(s.tableName(), `"evil""; DROP"`) {
		t.Errorf("expected quoted identifier, got %s", s.tableName())
	}
}
