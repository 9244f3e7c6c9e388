package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Menu sections.
const (
	SectionTacos       = "tacos"
	SectionDrinks      = "bebidas"
	SectionSpecialties = "especialidades"
)

// MenuCategory describes one priced category of the fixed menu schema.
type MenuCategory struct {
	Section  string
	Category string
	// Variants names the recognized-variant list in Catalog.Categories.
	Variants string
	// PriceKey, when set, is the single price entry shared by every variant.
	PriceKey string
	// Unit is appended to product names, e.g. "kg".
	Unit string
}

// Menu is the schema every catalog must satisfy.
var Menu = []MenuCategory{
	{Section: SectionTacos, Category: "carnitas", Variants: "carnitas"},
	{Section: SectionTacos, Category: "asada", Variants: "asada"},
	{Section: SectionDrinks, Category: "agua", Variants: "agua"},
	{Section: SectionDrinks, Category: "refresco", Variants: "refresco"},
	{Section: SectionSpecialties, Category: "carnitas", Variants: "carnitas", PriceKey: "kilo", Unit: "kg"},
}

// LookupMenu finds the schema entry for section/category.
func LookupMenu(section, category string) (MenuCategory, bool) {
	for _, m := range Menu {
		if m.Section == section && m.Category == category {
			return m, true
		}
	}
	return MenuCategory{}, false
}

// priceKey returns the entry under Prices[section][category] that prices variant.
func (m MenuCategory) priceKey(variant string) string {
	if m.PriceKey != "" {
		return m.PriceKey
	}
	return variant
}

// ProductName builds the display name used to label and merge order lines.
func (m MenuCategory) ProductName(variant string) string {
	switch {
	case m.Section == SectionTacos:
		return fmt.Sprintf("Taco %s %s", m.Category, variant)
	case m.Unit != "":
		return fmt.Sprintf("%s %s (%s)", capitalize(m.Category), variant, m.Unit)
	default:
		return fmt.Sprintf("%s %s", capitalize(m.Category), variant)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Catalog is the configuration document: unit prices, recognized variants,
// table roster, tax rate and display preference.
type Catalog struct {
	// Prices is section -> category -> variant (or shared key) -> unit price.
	Prices     map[string]map[string]map[string]decimal.Decimal `json:"prices"`
	Categories map[string][]string                              `json:"categories"`
	Tables     []int                                            `json:"tables"`
	TaxRate    decimal.Decimal                                  `json:"tax_rate"`
	DarkMode   bool                                             `json:"dark_mode"`
}

// DefaultCatalog returns the compiled-in catalog.
func DefaultCatalog() Catalog {
	p := decimal.NewFromInt
	return Catalog{
		Prices: map[string]map[string]map[string]decimal.Decimal{
			SectionTacos: {
				"carnitas": {"surtida": p(10), "maciza": p(10), "costilla": p(12)},
				"asada":    {"cesina": p(12), "costilla": p(12), "bistec": p(12)},
			},
			SectionDrinks: {
				"agua":     {"natural": p(5), "saborizada": p(6)},
				"refresco": {"coca": p(8), "sprite": p(8), "pepsi": p(8)},
			},
			SectionSpecialties: {
				"carnitas": {"kilo": p(100)},
			},
		},
		Categories: map[string][]string{
			"carnitas": {"surtida", "maciza", "costilla"},
			"asada":    {"cesina", "costilla", "bistec"},
			"agua":     {"natural", "saborizada"},
			"refresco": {"coca", "sprite", "pepsi"},
		},
		Tables:  []int{1, 2, 3, 4, 5, 6, 7, 8},
		TaxRate: decimal.RequireFromString("0.08"),
	}
}

// catalogDocument mirrors Catalog with optional fields so missing keys can
// be told apart from zero values.
type catalogDocument struct {
	Prices     *map[string]map[string]map[string]decimal.Decimal `json:"prices"`
	Categories *map[string][]string                              `json:"categories"`
	Tables     *[]int                                            `json:"tables"`
	TaxRate    *decimal.Decimal                                  `json:"tax_rate"`
	DarkMode   *bool                                             `json:"dark_mode"`
}

// DecodeCatalog parses and validates a persisted catalog.
func DecodeCatalog(raw []byte) (Catalog, error) {
	var doc catalogDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Catalog{}, fmt.Errorf("%w: %v", ErrCorruptCatalog, err)
	}
	switch {
	case doc.Prices == nil:
		return Catalog{}, fmt.Errorf("%w: missing prices", ErrCorruptCatalog)
	case doc.Categories == nil:
		return Catalog{}, fmt.Errorf("%w: missing categories", ErrCorruptCatalog)
	case doc.Tables == nil:
		return Catalog{}, fmt.Errorf("%w: missing tables", ErrCorruptCatalog)
	case doc.TaxRate == nil:
		return Catalog{}, fmt.Errorf("%w: missing tax_rate", ErrCorruptCatalog)
	}

	c := Catalog{
		Prices:     *doc.Prices,
		Categories: *doc.Categories,
		Tables:     *doc.Tables,
		TaxRate:    *doc.TaxRate,
	}
	if doc.DarkMode != nil {
		c.DarkMode = *doc.DarkMode
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks the catalog against Menu and the scalar constraints.
func (c Catalog) Validate() error {
	for _, m := range Menu {
		variants := c.Categories[m.Variants]
		if len(variants) == 0 {
			return fmt.Errorf("%w: no variants listed for %s", ErrCorruptCatalog, m.Variants)
		}
		for _, v := range variants {
			price, ok := c.Prices[m.Section][m.Category][m.priceKey(v)]
			if !ok {
				return fmt.Errorf("%w: missing price %s.%s.%s", ErrCorruptCatalog, m.Section, m.Category, m.priceKey(v))
			}
			if price.IsNegative() {
				return fmt.Errorf("%w: negative price %s.%s.%s", ErrCorruptCatalog, m.Section, m.Category, m.priceKey(v))
			}
		}
	}

	seen := make(map[int]bool, len(c.Tables))
	for _, t := range c.Tables {
		if t <= 0 || seen[t] {
			return fmt.Errorf("%w: bad table number %d", ErrCorruptCatalog, t)
		}
		seen[t] = true
	}

	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: tax rate %s out of range", ErrCorruptCatalog, c.TaxRate)
	}
	return nil
}

// Encode serializes the catalog for persistence.
func (c Catalog) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Clone returns a deep copy.
func (c Catalog) Clone() Catalog {
	out := Catalog{
		Prices:     make(map[string]map[string]map[string]decimal.Decimal, len(c.Prices)),
		Categories: make(map[string][]string, len(c.Categories)),
		Tables:     append([]int(nil), c.Tables...),
		TaxRate:    c.TaxRate,
		DarkMode:   c.DarkMode,
	}
	for section, categories := range c.Prices {
		sc := make(map[string]map[string]decimal.Decimal, len(categories))
		for category, variants := range categories {
			vc := make(map[string]decimal.Decimal, len(variants))
			for v, price := range variants {
				vc[v] = price
			}
			sc[category] = vc
		}
		out.Prices[section] = sc
	}
	for k, v := range c.Categories {
		out.Categories[k] = append([]string(nil), v...)
	}
	return out
}

// Price resolves the unit price of a product. Menu categories only accept
// recognized variants; specialties share one flat price across variants.
func (c Catalog) Price(section, category, variant string) (decimal.Decimal, error) {
	key, err := c.priceEntry(section, category, variant, false)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Prices[section][category][key], nil
}

// ProductName resolves the display name of a product.
func (c Catalog) ProductName(section, category, variant string) string {
	if m, ok := LookupMenu(section, category); ok {
		return m.ProductName(variant)
	}
	return fmt.Sprintf("%s %s", capitalize(category), variant)
}

// priceEntry maps a variant to its price entry. The shared entry of a
// specialty is only addressable by name when shared is set.
func (c Catalog) priceEntry(section, category, variant string, shared bool) (string, error) {
	key := variant
	if m, ok := LookupMenu(section, category); ok {
		isShared := shared && m.PriceKey != "" && variant == m.PriceKey
		if !isShared && !contains(c.Categories[m.Variants], variant) {
			return "", fmt.Errorf("%w: %s.%s.%s", ErrPriceNotFound, section, category, variant)
		}
		key = m.priceKey(variant)
	}
	if _, ok := c.Prices[section][category][key]; !ok {
		return "", fmt.Errorf("%w: %s.%s.%s", ErrPriceNotFound, section, category, variant)
	}
	return key, nil
}

// WithPrice returns a copy with one existing price replaced.
func (c Catalog) WithPrice(section, category, variant string, price decimal.Decimal) (Catalog, error) {
	if price.IsNegative() {
		return Catalog{}, ErrInvalidPrice
	}
	key, err := c.priceEntry(section, category, variant, true)
	if err != nil {
		return Catalog{}, err
	}
	out := c.Clone()
	out.Prices[section][category][key] = price
	return out, nil
}

// HasTable reports whether n is on the roster.
func (c Catalog) HasTable(n int) bool {
	for _, t := range c.Tables {
		if t == n {
			return true
		}
	}
	return false
}

// WithTable returns a copy with n added to the roster, kept ascending.
func (c Catalog) WithTable(n int) (Catalog, error) {
	if n <= 0 || c.HasTable(n) {
		return Catalog{}, fmt.Errorf("%w: %d", ErrDuplicateTable, n)
	}
	out := c.Clone()
	out.Tables = append(out.Tables, n)
	sort.Ints(out.Tables)
	return out, nil
}

// WithoutTable returns a copy with n removed from the roster.
func (c Catalog) WithoutTable(n int) (Catalog, error) {
	if !c.HasTable(n) {
		return Catalog{}, fmt.Errorf("%w: %d", ErrTableNotFound, n)
	}
	out := c.Clone()
	tables := out.Tables[:0]
	for _, t := range out.Tables {
		if t != n {
			tables = append(tables, t)
		}
	}
	out.Tables = tables
	return out, nil
}

// WithTaxRate returns a copy with the given fractional tax rate.
func (c Catalog) WithTaxRate(rate decimal.Decimal) (Catalog, error) {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Catalog{}, fmt.Errorf("%w: %s", ErrInvalidTaxRate, rate)
	}
	out := c.Clone()
	out.TaxRate = rate
	return out, nil
}

func (c Catalog) WithDarkMode(on bool) Catalog {
	out := c.Clone()
	out.DarkMode = on
	return out
}

// ParseTableNumber parses user input for a new table. Non-numeric input is
// reported as ErrDuplicateTable, the same outcome as an existing number.
func ParseTableNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a table number", ErrDuplicateTable, s)
	}
	return n, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
