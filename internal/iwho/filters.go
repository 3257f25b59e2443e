package iwho

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Filter restricts the instruction universe per iwho.filters (spec §6.2).
// Filters compose by sequential application, in configured order.
type Filter interface {
	Kind() string
	Apply(schemes []*Scheme) []*Scheme
}

// NoControlFlowFilter drops schemes that can transfer control, since a basic
// block by definition has none.
type NoControlFlowFilter struct{}

func (NoControlFlowFilter) Kind() string { return "no_cf" }

func (NoControlFlowFilter) Apply(schemes []*Scheme) []*Scheme {
	out := make([]*Scheme, 0, len(schemes))
	for _, s := range schemes {
		if !s.HasControlFlow() {
			out = append(out, s)
		}
	}
	return out
}

// WithMeasurementsFilter keeps only schemes for which the supplied predicate
// (backed, in a full deployment, by the measurement database) reports
// existing measurements.
type WithMeasurementsFilter struct {
	HasMeasurement func(SchemeID) bool
}

func (WithMeasurementsFilter) Kind() string { return "with_measurements" }

func (f WithMeasurementsFilter) Apply(schemes []*Scheme) []*Scheme {
	if f.HasMeasurement == nil {
		return schemes
	}
	out := make([]*Scheme, 0, len(schemes))
	for _, s := range schemes {
		if f.HasMeasurement(s.ID) {
			out = append(out, s)
		}
	}
	return out
}

// ListFilter is the shared shape of blacklist/whitelist: a file of scheme
// identifiers (one per line, or the first CSV column), either excluded or
// required.
type ListFilter struct {
	FilePath string
	Allow    bool // true = whitelist (keep only listed), false = blacklist (drop listed)
	ids      map[SchemeID]struct{}
}

func (f ListFilter) Kind() string {
	if f.Allow {
		return "whitelist"
	}
	return "blacklist"
}

// LoadListFilter reads FilePath as CSV (one scheme id per row's first
// column; blank lines and rows starting with '#' are skipped) and returns a
// ready-to-apply filter.
func LoadListFilter(filePath string, allow bool) (*ListFilter, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("iwho: reading filter file %q: %w", filePath, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'

	ids := make(map[SchemeID]struct{})
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if len(record) == 0 || record[0] == "" {
			continue
		}
		ids[SchemeID(record[0])] = struct{}{}
	}
	return &ListFilter{FilePath: filePath, Allow: allow, ids: ids}, nil
}

func (f *ListFilter) Apply(schemes []*Scheme) []*Scheme {
	out := make([]*Scheme, 0, len(schemes))
	for _, s := range schemes {
		_, listed := f.ids[s.ID]
		if f.Allow == listed {
			out = append(out, s)
		}
	}
	return out
}

// WriteCSV persists the filter's scheme ids as a single-column CSV, used
// when a campaign copies referenced filter lists into filter_files/ (§6.4)
// and when check-predictors --write-filter produces a new one.
func WriteCSV(path string, ids []SchemeID) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("iwho: writing filter file %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, id := range ids {
		if err := w.Write([]string{string(id)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
