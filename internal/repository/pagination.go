package repository

import (
	"strings"

	"github.com/uptrace/bun"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// ListParams selects one page of a list query. Sort names a field from the
// store's whitelist; unknown names fall back to the default ordering.
type ListParams struct {
	Page    int
	PerPage int
	Search  string
	Sort    string
	Desc    bool
}

// PageMeta describes where a page sits in the full result.
type PageMeta struct {
	Page      int `json:"page"`
	PerPage   int `json:"perPage"`
	TotalRows int `json:"totalRows"`
	TotalPage int `json:"totalPage"`
}

// Page is one page of rows plus its metadata.
type Page[T any] struct {
	Rows []T      `json:"rows"`
	Meta PageMeta `json:"meta"`
}

func (p ListParams) normalized() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = defaultPerPage
	}
	if p.PerPage > maxPerPage {
		p.PerPage = maxPerPage
	}
	p.Search = strings.TrimSpace(p.Search)
	return p
}

func (p ListParams) offset() int { return (p.Page - 1) * p.PerPage }

func (p ListParams) likePattern() string {
	return "%" + strings.ToLower(p.Search) + "%"
}

// applyOrder orders q by the whitelisted column for p.Sort, or by
// fallback descending.
func (p ListParams) applyOrder(q *bun.SelectQuery, columns map[string]string, fallback string) *bun.SelectQuery {
	col, ok := columns[p.Sort]
	if !ok {
		return q.OrderExpr("? DESC", bun.Ident(fallback))
	}
	if p.Desc {
		return q.OrderExpr("? DESC", bun.Ident(col))
	}
	return q.OrderExpr("? ASC", bun.Ident(col))
}

func newPage[T any](rows []T, total int, p ListParams) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	pages := 0
	if total > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return Page[T]{
		Rows: rows,
		Meta: PageMeta{Page: p.Page, PerPage: p.PerPage, TotalRows: total, TotalPage: pages},
	}
}
