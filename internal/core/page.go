package core

import (
	"math"
	"sort"
)

const (
	DefaultPageNo   = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	// MaxPageNo keeps the row offset of any clamped request within an int.
	MaxPageNo = math.MaxInt / MaxPageSize
)

// PageRequest selects one page of a date-descending result set.
type PageRequest struct {
	PageNo   int
	PageSize int
}

// Normalize fills zero values with the defaults.
func (p PageRequest) Normalize() PageRequest {
	if p.PageNo < 1 {
		p.PageNo = DefaultPageNo
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	return p
}

// Clamp is Normalize plus the MaxPageSize and MaxPageNo caps applied to
// client requests.
func (p PageRequest) Clamp() PageRequest {
	p = p.Normalize()
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	if p.PageNo > MaxPageNo {
		p.PageNo = MaxPageNo
	}
	return p
}

// Offset returns the number of rows preceding the page, saturating at
// math.MaxInt.
func (p PageRequest) Offset() int {
	p = p.Normalize()
	if p.PageNo-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.PageNo - 1) * p.PageSize
}

type Page[T any] struct {
	Items      []T `json:"payload"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
	TotalPages int `json:"totalPages"`
}

// NewPage builds a page envelope. total is the size of the whole result
// set, independent of items.
func NewPage[T any](items []T, req PageRequest, total int) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	pages := total / req.PageSize
	if total%req.PageSize != 0 {
		pages++
	}
	return Page[T]{
		Items:      items,
		Page:       req.PageNo,
		PageSize:   req.PageSize,
		TotalCount: total,
		TotalPages: pages,
	}
}

// SortByDateDesc orders transactions newest first, id ascending on ties.
func SortByDateDesc(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

// Paginate returns the slice of txs covered by req. txs must already be sorted.
func Paginate(txs []Transaction, req PageRequest) []Transaction {
	req = req.Normalize()
	start := req.Offset()
	if start >= len(txs) {
		return []Transaction{}
	}
	end := len(txs)
	if req.PageSize < end-start {
		end = start + req.PageSize
	}
	out := make([]Transaction, end-start)
	copy(out, txs[start:end])
	return out
}
