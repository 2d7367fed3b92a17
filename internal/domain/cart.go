package domain

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"
)

// MaxQuantity is the most units a single cart line can hold. It matches the
// range of the quantity column.
const MaxQuantity = math.MaxInt32

// Options maps an option name (e.g. "color") to the chosen value (e.g. "red").
type Options map[string]string

type CartLine struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	ProductID       int64     `json:"product_id"`
	SpecificationID *int64    `json:"specification_id"`
	Options         Options   `json:"options"`
	Quantity        int       `json:"quantity"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AddItem is a validated request to put units of a product into a cart.
type AddItem struct {
	ProductID       int64
	SpecificationID *int64
	Options         Options
	Quantity        int
}

// Normalize trims names and values and drops options without a name.
func (o Options) Normalize() Options {
	out := make(Options, len(o))
	for name, value := range o {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

// CanonicalKey serializes the options so that equal sets always produce equal
// keys regardless of insertion order or surrounding whitespace.
func (o Options) CanonicalKey() string {
	n := o.Normalize()
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([][2]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, [2]string{name, n[name]})
	}

	// marshalling [][2]string cannot fail
	b, _ := json.Marshal(pairs)
	return string(b)
}

// ParseOptionsKey is the inverse of CanonicalKey.
func ParseOptionsKey(key string) (Options, error) {
	var pairs [][2]string
	if err := json.Unmarshal([]byte(key), &pairs); err != nil {
		return nil, err
	}
	out := make(Options, len(pairs))
	for _, p := range pairs {
		out[p[0]] = p[1]
	}
	return out, nil
}

// MergeKey identifies the cart line an AddItem folds into.
type MergeKey struct {
	UserID          int64
	ProductID       int64
	SpecificationID int64 // 0 when absent
	OptionsKey      string
}

func NewMergeKey(userID int64, item AddItem) MergeKey {
	var spec int64
	if item.SpecificationID != nil {
		spec = *item.SpecificationID
	}
	return MergeKey{
		UserID:          userID,
		ProductID:       item.ProductID,
		SpecificationID: spec,
		OptionsKey:      item.Options.CanonicalKey(),
	}
}
