package postgres

import (
	"fmt"
	"strings"
)

// buildListQuery appends the filter conditions, ordering and pagination to baseQuery.
func buildListQuery(baseQuery string, conditions []string, args *[]any, orderBy string, offset, limit int) string {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(baseQuery)

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}

	queryBuilder.WriteString(" ORDER BY ")
	queryBuilder.WriteString(orderBy)

	if limit > 0 {
		*args = append(*args, limit)
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", len(*args)))
	}
	if offset > 0 {
		*args = append(*args, offset)
		queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", len(*args)))
	}

	return queryBuilder.String()
}

func statusStrings[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
