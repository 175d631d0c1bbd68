package postgres

import (
	"fmt"
	"strings"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
)

// whereBuilder collects AND-ed conditions written with ? placeholders.
// build expands slice arguments with sqlx.In and rebinds to postgres $n placeholders.
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (w *whereBuilder) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *whereBuilder) build(prefix, suffix string) (string, []interface{}, error) {
	query := prefix
	if len(w.clauses) > 0 {
		query += " WHERE " + strings.Join(w.clauses, " AND ")
	}
	query += suffix

	query, args, err := sqlx.In(query, w.args...)
	if err != nil {
		return "", nil, ierr.WithError(err).
			WithHint("Failed to build query").
			Mark(ierr.ErrDatabase)
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args, nil
}

// orderAndPage renders ORDER BY / LIMIT / OFFSET for a filter. Only whitelisted
// columns can be sorted on since the column name is interpolated.
func orderAndPage(filter *types.QueryFilter, sortable []string, tiebreak string) string {
	if filter == nil {
		filter = types.NewDefaultQueryFilter()
	}

	sort := filter.GetSort()
	if !lo.Contains(sortable, sort) {
		sort = types.FILTER_DEFAULT_SORT
	}
	order := "DESC"
	if filter.GetOrder() == types.OrderAsc {
		order = "ASC"
	}

	return fmt.Sprintf(" ORDER BY %s %s, %s %s LIMIT %d OFFSET %d",
		sort, order, tiebreak, order, filter.GetLimit(), filter.GetOffset())
}
