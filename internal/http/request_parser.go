package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"txagg/internal/core"
	"txagg/internal/query"
)

const dateOnly = "2006-01-02"

// parsePage reads pageNo and pageSize. Missing values take the defaults;
// present values must be integers of at least 1, and pageNo is bounded by
// core.MaxPageNo.
func parsePage(q url.Values) (core.PageRequest, error) {
	p := core.PageRequest{PageNo: core.DefaultPageNo, PageSize: core.DefaultPageSize}

	var err error
	if p.PageNo, err = positiveInt(q, "pageNo", p.PageNo); err != nil {
		return core.PageRequest{}, err
	}
	if p.PageNo > core.MaxPageNo {
		return core.PageRequest{}, fmt.Errorf("%w: pageNo must not exceed %d", core.ErrValidation, core.MaxPageNo)
	}
	if p.PageSize, err = positiveInt(q, "pageSize", p.PageSize); err != nil {
		return core.PageRequest{}, err
	}
	return p, nil
}

func positiveInt(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", core.ErrValidation, name, v)
	}
	return n, nil
}

// parseTime accepts RFC 3339 timestamps or YYYY-MM-DD dates. A date-only
// value used as an upper bound covers the whole day.
func parseTime(name, v string, upper bool) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(dateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD, got %q", core.ErrValidation, name, v)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseAmount(name, v string) (*core.Money, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	m, err := core.ParseAmount(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrValidation, name, err)
	}
	return &m, nil
}

// parseDateRange reads the required startDate and endDate parameters.
func parseDateRange(q url.Values) (time.Time, time.Time, error) {
	start, err := parseTime("startDate", q.Get("startDate"), false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseTime("endDate", q.Get("endDate"), true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if start == nil || end == nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: startDate and endDate are required", core.ErrValidation)
	}
	return *start, *end, nil
}

// parseFindRequest maps query parameters onto a FindRequest. Criteria are
// validated later by the query service.
func parseFindRequest(q url.Values) (query.FindRequest, error) {
	req := query.FindRequest{
		ID:           q.Get("id"),
		CustomerID:   q.Get("customerId"),
		CustomerName: q.Get("customerName"),
		Description:  q.Get("description"),
		Category:     q.Get("category"),
		Source:       q.Get("source"),
		Currency:     q.Get("currency"),
		Type:         q.Get("type"),
	}

	var err error
	if req.MinAmount, err = parseAmount("minAmount", q.Get("minAmount")); err != nil {
		return query.FindRequest{}, err
	}
	if req.MaxAmount, err = parseAmount("maxAmount", q.Get("maxAmount")); err != nil {
		return query.FindRequest{}, err
	}
	if req.StartDate, err = parseTime("startDate", q.Get("startDate"), false); err != nil {
		return query.FindRequest{}, err
	}
	if req.EndDate, err = parseTime("endDate", q.Get("endDate"), true); err != nil {
		return query.FindRequest{}, err
	}
	return req, nil
}
