package sequence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category identifies one kind of human-readable identifier.
type Category string

const (
	CategoryOrder       Category = "order"
	CategoryTransaction Category = "transaction"
	CategorySKU         Category = "sku"
)

// Spec describes the shape of one category's identifiers:
// PREFIX-YYYYMMDD<discriminator>-NNNN.
type Spec struct {
	Prefix string
	Width  int
	// Limit is the highest counter value before wrapping back to 1.
	// Zero disables wrapping.
	Limit int
}

var specsByCategory = map[Category]Spec{
	CategoryOrder:       {Prefix: "ORD", Width: 5, Limit: 99999},
	CategoryTransaction: {Prefix: "TRA", Width: 5, Limit: 99999},
	CategorySKU:         {Prefix: "SKU", Width: 4},
}

// SpecFor returns the identifier spec for a category.
func SpecFor(category Category) (Spec, error) {
	spec, ok := specsByCategory[category]
	if !ok {
		return Spec{}, fmt.Errorf("unknown sequence category %q", category)
	}
	return spec, nil
}

// Format builds the identifier string. The discriminator is empty for order
// and transaction numbers; SKUs embed the product category id after the date.
func (s Spec) Format(date time.Time, discriminator string, seq int) string {
	return fmt.Sprintf("%s-%s%s-%0*d", s.Prefix, date.UTC().Format("20060102"), discriminator, s.Width, seq)
}

// Extract returns the embedded counter value of an identifier.
func (s Spec) Extract(identifier string) (int, error) {
	parts := strings.Split(identifier, "-")
	if len(parts) < 3 {
		return 0, fmt.Errorf("malformed identifier %q", identifier)
	}
	counter := parts[2]
	if len(counter) != s.Width {
		return 0, fmt.Errorf("identifier counter should be %d chars, %q was provided", s.Width, counter)
	}
	seq, err := strconv.Atoi(counter)
	if err != nil {
		return 0, fmt.Errorf("identifier counter should be numeric, %q was provided", counter)
	}
	return seq, nil
}

// Wrap folds a raw counter value into the configured bound. Counters wrap to 1
// past the limit; identifiers stay unique because the date participates too.
func (s Spec) Wrap(raw int64) int {
	if s.Limit <= 0 {
		return int(raw)
	}
	return int((raw-1)%int64(s.Limit)) + 1
}
