package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/tuzo/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// Pagination binds limit/offset query params; Limit defaults to 50 and is
// capped at 200.
type Pagination struct {
	Limit  int
	Offset int
}

func (p *Pagination) Bind(ctx echo.Context) {
	p.Limit = 50
	if val, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && val > 0 {
		p.Limit = val
	}
	if p.Limit > 200 {
		p.Limit = 200
	}
	if val, err := strconv.Atoi(ctx.QueryParam("offset")); err == nil && val > 0 {
		p.Offset = val
	}
}
