package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/property"
)

// testBatchSize is how many properties --test selects.
const testBatchSize = 5

// Selection errors.
var (
	ErrNoSelection      = errors.New("select properties with an address argument, --all, or --test")
	ErrAddressNotFound  = errors.New("address not found in the properties CSV")
	ErrInputCSVRequired = errors.New("properties CSV is required")
)

// loadProperties reads the full input CSV into memory. Batches are a
// few hundred rows at most; streaming buys nothing here.
func loadProperties(path string) ([]property.Property, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputCSVRequired, path)
		}

		return nil, fmt.Errorf("open properties CSV: %w", err)
	}
	defer f.Close()

	var props []property.Property

	err = property.ReadProperties(f, func(p property.Property) error {
		props = append(props, p)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read properties CSV: %w", err)
	}

	return props, nil
}

// selectProperties narrows the batch per the CLI arguments: a single
// normalized address, --all, or --test (the first testBatchSize rows).
func selectProperties(props []property.Property, args []string, all, test bool) ([]property.Property, error) {
	switch {
	case len(args) == 1:
		want := property.NormalizeAddress(args[0])

		for _, p := range props {
			if p.FullAddress == want {
				return []property.Property{p}, nil
			}
		}

		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, want)

	case all:
		return props, nil

	case test:
		if len(props) > testBatchSize {
			props = props[:testBatchSize]
		}

		return props, nil
	}

	return nil, ErrNoSelection
}
