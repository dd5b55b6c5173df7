package postgres

import (
	"fmt"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// appendListOpts adds the time window, ordering and pagination of opts to a
// query whose WHERE clause already holds len(args) placeholders.
func appendListOpts(query string, args []any, opts domain.ListOpts, timeCol, order string) (string, []any) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= $%d", timeCol, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= $%d", timeCol, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += fmt.Sprintf(" ORDER BY %s %s", timeCol, order)
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}
