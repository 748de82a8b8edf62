package riskmodel

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrInvalidCSV    = errors.New("invalid csv")
	ErrMissingColumn = errors.New("missing column")
)

// Key is the feature tuple a risk class is predicted for.
type Key struct {
	Zone int
	Time int
	Day  int
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d:%d", k.Zone, k.Time, k.Day)
}

type Row struct {
	Key   Key
	Class string
}

type Dataset struct {
	Header []string
	// ClassColumn is the header name of the last column.
	ClassColumn string
	Rows        []Row
}

// ParseCSV reads a header row followed by data rows. The zone, time and day
// columns are required integers; the last column holds the class.
func ParseCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
	}
	header = append([]string(nil), header...)

	zone, tm, day := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "zone":
			zone = i
		case "time":
			tm = i
		case "day":
			day = i
		}
	}
	for _, col := range []struct {
		name string
		idx  int
	}{{"zone", zone}, {"time", tm}, {"day", day}} {
		if col.idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col.name)
		}
	}
	class := len(header) - 1
	if class == zone || class == tm || class == day {
		return nil, fmt.Errorf("%w: no class column after zone, time and day", ErrMissingColumn)
	}

	ds := &Dataset{
		Header:      header,
		ClassColumn: strings.TrimSpace(header[class]),
	}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCSV, err)
		}
		line, _ := cr.FieldPos(0)
		var k Key
		if k.Zone, err = atoi(rec[zone]); err != nil {
			return nil, fmt.Errorf("%w: line %d: zone: %w", ErrInvalidCSV, line, err)
		}
		if k.Time, err = atoi(rec[tm]); err != nil {
			return nil, fmt.Errorf("%w: line %d: time: %w", ErrInvalidCSV, line, err)
		}
		if k.Day, err = atoi(rec[day]); err != nil {
			return nil, fmt.Errorf("%w: line %d: day: %w", ErrInvalidCSV, line, err)
		}
		ds.Rows = append(ds.Rows, Row{Key: k, Class: strings.TrimSpace(rec[class])})
	}
	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrInvalidCSV)
	}
	return ds, nil
}

// atoi accepts integral floats such as "3.0", which spreadsheet exports
// tend to produce.
func atoi(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}
