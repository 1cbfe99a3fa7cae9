package property

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrBadHeader is returned when the input CSV header does not match the
// expected column set.
var ErrBadHeader = errors.New("unexpected properties CSV header")

// InputColumns is the required header of the properties CSV, in order.
var InputColumns = []string{
	"street", "city", "state", "zip", "price", "price_num",
	"beds", "baths", "sqft", "price_per_sqft", "full_address",
}

// RankedColumns are the derived columns appended to the ranked CSV.
var RankedColumns = []string{
	"kill_switch_verdict", "kill_switch_severity", "total_score",
	"score_section_a", "score_section_b", "score_section_c",
	"tier", "defaults_used", "data_quality",
}

// Column indexes into an input row.
const (
	colStreet = iota
	colCity
	colState
	colZip
	colPrice
	colPriceNum
	colBeds
	colBaths
	colSqft
	colPricePerSqft
	colFullAddress
)

// ReadProperties streams the properties CSV, invoking fn once per row.
// The full dataset is never held in memory. Addresses are normalized
// before fn sees them. Returning an error from fn stops the stream.
func ReadProperties(r io.Reader, fn func(Property) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(InputColumns)

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read properties header: %w", err)
	}

	for i, want := range InputColumns {
		if header[i] != want {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, header[i], want)
		}
	}

	for {
		row, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			return nil
		}

		if readErr != nil {
			return fmt.Errorf("read properties row: %w", readErr)
		}

		prop, parseErr := parseRow(row)
		if parseErr != nil {
			return parseErr
		}

		fnErr := fn(prop)
		if fnErr != nil {
			return fnErr
		}
	}
}

func parseRow(row []string) (Property, error) {
	prop := Property{
		Street:      row[colStreet],
		City:        row[colCity],
		State:       row[colState],
		Zip:         row[colZip],
		Price:       row[colPrice],
		FullAddress: NormalizeAddress(row[colFullAddress]),
	}

	var err error

	prop.PriceNum, err = parseFloatColumn(row[colPriceNum], "price_num")
	if err != nil {
		return Property{}, err
	}

	beds, err := parseFloatColumn(row[colBeds], "beds")
	if err != nil {
		return Property{}, err
	}

	prop.Beds = int(beds)

	prop.Baths, err = parseFloatColumn(row[colBaths], "baths")
	if err != nil {
		return Property{}, err
	}

	prop.Sqft, err = parseFloatColumn(row[colSqft], "sqft")
	if err != nil {
		return Property{}, err
	}

	prop.PricePerSqft, err = parseFloatColumn(row[colPricePerSqft], "price_per_sqft")
	if err != nil {
		return Property{}, err
	}

	return prop, nil
}

func parseFloatColumn(raw, column string) (float64, error) {
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", column, raw, err)
	}

	return v, nil
}

// RankedWriter streams ranked CSV rows (input columns plus derived
// scoring columns) without buffering the dataset.
type RankedWriter struct {
	w *csv.Writer
}

// NewRankedWriter writes the ranked header and returns a row writer.
func NewRankedWriter(w io.Writer) (*RankedWriter, error) {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(InputColumns)+len(RankedColumns))
	header = append(header, InputColumns...)
	header = append(header, RankedColumns...)

	err := cw.Write(header)
	if err != nil {
		return nil, fmt.Errorf("write ranked header: %w", err)
	}

	return &RankedWriter{w: cw}, nil
}

// WriteRow appends one property with its enrichment-derived columns.
func (rw *RankedWriter) WriteRow(prop Property, rec *Record) error {
	row := []string{
		prop.Street, prop.City, prop.State, prop.Zip, prop.Price,
		formatFloat(prop.PriceNum),
		strconv.Itoa(prop.Beds),
		formatFloat(prop.Baths),
		formatFloat(prop.Sqft),
		formatFloat(prop.PricePerSqft),
		prop.FullAddress,
		string(rec.KillSwitchVerdict),
		formatFloat(rec.KillSwitchSeverity),
		formatFloat(rec.TotalScore),
		formatFloat(rec.ScoreSectionA),
		formatFloat(rec.ScoreSectionB),
		formatFloat(rec.ScoreSectionC),
		string(rec.Tier),
		strconv.Itoa(rec.DefaultsUsed),
		formatFloat(rec.DataQuality),
	}

	err := rw.w.Write(row)
	if err != nil {
		return fmt.Errorf("write ranked row: %w", err)
	}

	return nil
}

// Flush flushes buffered rows and reports any write error.
func (rw *RankedWriter) Flush() error {
	rw.w.Flush()

	err := rw.w.Error()
	if err != nil {
		return fmt.Errorf("flush ranked csv: %w", err)
	}

	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
