package domain

// DatabaseField describes one column of a structured workspace database.
type DatabaseField struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// DatabaseDescriptor is the schema summary the filter planner reasons over.
// SampleValues carries a few example cell values per field so the model can
// match vocabulary (status names, tags) instead of guessing.
type DatabaseDescriptor struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Fields       []DatabaseField     `json:"fields"`
	SampleValues map[string][]string `json:"sample_values,omitempty"`
}

// FieldByID returns the field with the given ID, if present.
func (d DatabaseDescriptor) FieldByID(id string) (DatabaseField, bool) {
	for _, f := range d.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return DatabaseField{}, false
}

// FilterOperator is the closed set of comparisons the record search supports.
type FilterOperator string

const (
	FilterEquals   FilterOperator = "equals"
	FilterContains FilterOperator = "contains"
)

// FieldFilter narrows one field of one database.
type FieldFilter struct {
	FieldID  string         `json:"field_id"`
	Operator FilterOperator `json:"operator"`
	Value    string         `json:"value"`
}

// DatabaseFilterPlan scopes retrieval to a subset of databases, optionally
// narrowed per database by field filters. An empty plan means no scoping.
type DatabaseFilterPlan struct {
	DatabaseIDs  []string                 `json:"database_ids"`
	FieldFilters map[string][]FieldFilter `json:"field_filters,omitempty"`
}

// IsEmpty reports whether the plan scopes nothing.
func (p DatabaseFilterPlan) IsEmpty() bool {
	return len(p.DatabaseIDs) == 0
}

// Sanitize drops everything the candidate set cannot back: database IDs not
// present among the candidates, filters for dropped databases, and filters
// whose field or operator is unknown. The result references only verifiable
// schema elements, whatever the model produced.
func (p DatabaseFilterPlan) Sanitize(candidates []DatabaseDescriptor) DatabaseFilterPlan {
	byID := make(map[string]DatabaseDescriptor, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	clean := DatabaseFilterPlan{}
	seen := make(map[string]bool, len(p.DatabaseIDs))
	for _, id := range p.DatabaseIDs {
		desc, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		clean.DatabaseIDs = append(clean.DatabaseIDs, id)

		var kept []FieldFilter
		for _, f := range p.FieldFilters[id] {
			if _, ok := desc.FieldByID(f.FieldID); !ok {
				continue
			}
			if f.Operator != FilterEquals && f.Operator != FilterContains {
				continue
			}
			kept = append(kept, f)
		}
		if len(kept) > 0 {
			if clean.FieldFilters == nil {
				clean.FieldFilters = make(map[string][]FieldFilter)
			}
			clean.FieldFilters[id] = kept
		}
	}
	return clean
}
