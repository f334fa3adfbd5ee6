package schema

import (
	"fmt"
	"strings"

	"salesetl/internal/table"
)

// SchemaError reports required columns a source lacks. It is fatal: every
// later stage assumes the columns exist.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: table %s missing required column(s): %s", e.Table, strings.Join(e.Missing, ", "))
}

// Validate checks that t has every required column of c. Only presence is
// checked; types are applied later by the transformer.
func Validate(t *table.Table, c Contract) error {
	var missing []string
	for _, name := range c.Required() {
		if !t.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Table: c.Name, Missing: missing}
	}
	return nil
}
