package persistence

import (
	"sort"

	"github.com/goliatone/go-repository-bun"
)

// Columns maps column names to the values an update writes
type Columns map[string]any

// Set turns the columns into repository update criteria. Every column is
// written as given, zero values included: the repository update omits
// zero fields of the model, which would drop false flags and cleared
// values. Columns are emitted in name order.
func (c Columns) Set() []repository.UpdateCriteria {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	criteria := make([]repository.UpdateCriteria, 0, len(names))
	for _, name := range names {
		criteria = append(criteria, repository.UpdateSetColumn(name, c[name]))
	}
	return criteria
}
