package predicate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status string

type row map[string]any

func (r row) Field(name string) (any, bool) {
	v, ok := r[name]
	return v, ok
}

func TestMatch(t *testing.T) {
	seen := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	jane := row{
		"name":               "Jane Doe",
		"case_number":        "MC123456ABC",
		"last_seen_location": "Lagos",
		"age":                10,
		"gender":             "female",
		"status":             status("active"),
		"last_seen_date":     seen,
	}

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"zero value matches", Predicate{}, true},
		{"eq typed string", Eq("status", "active"), true},
		{"eq mismatch", Eq("gender", "male"), false},
		{"contains ignores case", Contains("name", "jANE"), true},
		{"gte inclusive", Gte("age", 10), true},
		{"lte inclusive", Lte("age", 10), true},
		{"lte excludes", Lte("age", 9), false},
		{"time range", And(Gte("last_seen_date", seen), Lte("last_seen_date", seen.Add(time.Hour))), true},
		{"or over fields", Or(Contains("name", "zzz"), Contains("case_number", "123456")), true},
		{"or of nothing", Or(), false},
		{"unknown field never matches", Eq("colour", "red"), false},
		{"type mismatch never matches", Eq("age", "10"), false},
		{"and short-circuits", And(Eq("status", "active"), Eq("gender", "male")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Match(jane))
		})
	}
}

func TestAndDropsMatchAll(t *testing.T) {
	p := And(All(), Eq("status", "active"), And())
	assert.Equal(t, Eq("status", "active"), p)
	assert.True(t, And().IsAll())
}

var caseColumns = Columns{
	"name":        "name",
	"case_number": "case_number",
	"age":         "age",
	"status":      "status",
	"reported_by": "reported_by",
}

func TestSQL(t *testing.T) {
	owner := uuid.New()

	t.Run("nested groups with sequential placeholders", func(t *testing.T) {
		p := And(
			Eq("status", status("active")),
			Or(Contains("name", "jane"), Contains("case_number", "jane")),
			Gte("age", 5),
		)
		expr, args, err := p.SQL(caseColumns, 3)
		require.NoError(t, err)
		assert.Equal(t, `(status = $3 AND (name ILIKE $4 ESCAPE '\' OR case_number ILIKE $5 ESCAPE '\') AND age >= $6)`, expr)
		assert.Equal(t, []any{"active", "%jane%", "%jane%", 5}, args)
	})

	t.Run("like wildcards in input are escaped", func(t *testing.T) {
		_, args, err := Contains("name", `50%_off\`).SQL(caseColumns, 1)
		require.NoError(t, err)
		assert.Equal(t, []any{`%50\%\_off\\%`}, args)
	})

	t.Run("uuid values pass through as driver values", func(t *testing.T) {
		_, args, err := Eq("reported_by", owner).SQL(caseColumns, 1)
		require.NoError(t, err)
		assert.Equal(t, []any{owner}, args)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		_, _, err := Eq("name; DROP TABLE missing_children", "x").SQL(caseColumns, 1)
		require.Error(t, err)
	})

	t.Run("empty trees", func(t *testing.T) {
		expr, args, err := All().SQL(caseColumns, 1)
		require.NoError(t, err)
		assert.Equal(t, "TRUE", expr)
		assert.Empty(t, args)

		expr, _, err = Or().SQL(caseColumns, 1)
		require.NoError(t, err)
		assert.Equal(t, "FALSE", expr)
	})
}
