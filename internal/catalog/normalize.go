package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrEmptyProduct is returned when a product has no fields to insert.
var ErrEmptyProduct = errors.New("empty product")

// ProductColumns are the canonical product column names.
var ProductColumns = []string{
	"nombreProducto",
	"descripcion",
	"precio",
	"stock",
	"imagenURL",
	"emprendedorIdEmprendedor",
	"categoriaIdCategoria",
}

// ProductAliases maps alternative spellings clients send to canonical columns.
// Keys are compared case-insensitively.
var ProductAliases = map[string]string{
	"nombre":                  "nombreProducto",
	"imagen":                  "imagenURL",
	"emprendedoridemrendedor": "emprendedorIdEmprendedor",
	"emprendedorid":           "emprendedorIdEmprendedor",
	"categoriaid":             "categoriaIdCategoria",
}

// ProductDefaults fill required columns the client left out.
var ProductDefaults = map[string]any{
	"descripcion": "",
	"imagenURL":   "",
	"stock":       int64(1),
}

// Normalizer maps client-supplied field names onto the canonical schema.
type Normalizer struct {
	columns  map[string]string // lower-cased column -> canonical
	aliases  map[string]string // lower-cased alias -> canonical
	defaults map[string]any
}

// NewNormalizer builds a Normalizer from canonical columns, an alias table and
// default values.
func NewNormalizer(columns []string, aliases map[string]string, defaults map[string]any) *Normalizer {
	n := &Normalizer{
		columns:  make(map[string]string, len(columns)),
		aliases:  make(map[string]string, len(aliases)),
		defaults: maps.Clone(defaults),
	}
	for _, c := range columns {
		n.columns[strings.ToLower(c)] = c
	}
	for alias, c := range aliases {
		n.aliases[strings.ToLower(alias)] = c
	}
	return n
}

// DefaultNormalizer returns the product normalizer with the built-in alias
// table merged with extra.
func DefaultNormalizer(extra map[string]string) *Normalizer {
	aliases := maps.Clone(ProductAliases)
	maps.Copy(aliases, extra)
	return NewNormalizer(ProductColumns, aliases, ProductDefaults)
}

// Normalize returns a copy of product with canonical keys, defaults applied
// and JSON numbers converted to int64 or decimal.Decimal. A key that already
// names a column wins over an alias of the same column. Unknown keys pass
// through unchanged.
func (n *Normalizer) Normalize(product map[string]any) (map[string]any, error) {
	if len(product) == 0 {
		return nil, ErrEmptyProduct
	}

	out := make(map[string]any, len(product)+len(n.defaults))
	direct := make(map[string]bool)

	for key, value := range product {
		lower := strings.ToLower(key)
		if c, ok := n.columns[lower]; ok {
			out[c] = convertNumber(value)
			direct[c] = true
		}
	}
	for key, value := range product {
		lower := strings.ToLower(key)
		if _, ok := n.columns[lower]; ok {
			continue
		}
		if c, ok := n.aliases[lower]; ok {
			if !direct[c] {
				out[c] = convertNumber(value)
			}
			continue
		}
		out[key] = convertNumber(value)
	}

	for key, value := range n.defaults {
		if _, ok := out[key]; !ok {
			out[key] = value
		}
	}
	return out, nil
}

func convertNumber(v any) any {
	num, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := num.Int64(); err == nil {
		return i
	}
	if d, err := decimal.NewFromString(num.String()); err == nil {
		return d
	}
	return num.String()
}

// ParseAliases parses "alias=column,alias=column" into an alias table.
func ParseAliases(list string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		alias, column, ok := strings.Cut(pair, "=")
		alias, column = strings.TrimSpace(alias), strings.TrimSpace(column)
		if !ok || alias == "" || column == "" {
			return nil, fmt.Errorf("invalid field alias %q", pair)
		}
		out[alias] = column
	}
	return out, nil
}
