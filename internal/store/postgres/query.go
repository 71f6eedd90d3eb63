package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

// listQuery appends time filters, ordering and pagination from opts to base.
// tsCol is the timestamp column filtered and ordered on.
func listQuery(base, tsCol string, opts domain.ListOpts, args ...any) (string, []any) {
	var b strings.Builder
	b.WriteString(base)

	cond := " WHERE "
	if strings.Contains(strings.ToUpper(base), " WHERE ") {
		cond = " AND "
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		fmt.Fprintf(&b, "%s%s >= $%d", cond, tsCol, len(args))
		cond = " AND "
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		fmt.Fprintf(&b, "%s%s <= $%d", cond, tsCol, len(args))
	}

	fmt.Fprintf(&b, " ORDER BY %s DESC", tsCol)

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}
