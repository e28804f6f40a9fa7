package http

import (
	"context"
	"net/http"
	"time"

	"txagg/internal/core"
	"txagg/internal/query"
)

// QueryService is the read side the handlers delegate to.
type QueryService interface {
	All(ctx context.Context, p core.PageRequest) (core.Page[core.Transaction], error)
	ByCustomer(ctx context.Context, customerID string, p core.PageRequest) (core.Page[core.Transaction], error)
	ByCategory(ctx context.Context, category string, p core.PageRequest) (core.Page[core.Transaction], error)
	ByDateRange(ctx context.Context, start, end time.Time, p core.PageRequest) (core.Page[core.Transaction], error)
	BySource(ctx context.Context, source string, p core.PageRequest) (core.Page[core.Transaction], error)
	Find(ctx context.Context, req query.FindRequest, p core.PageRequest) (core.Page[core.Transaction], error)
	CustomerSummary(ctx context.Context, customerID string) (core.CustomerSummary, error)
	CategorySummary(ctx context.Context) (core.CategorySummary, error)
	SourceSummary(ctx context.Context) (core.SourceSummary, error)
	Categories(ctx context.Context) ([]string, error)
}

var _ QueryService = (*query.Service)(nil)

const msgTransactions = "Transactions retrieved successfully"

// pagedHandler adapts a paged listing into a handler: it parses the page
// parameters and writes the resulting page or error.
func pagedHandler(list func(r *http.Request, p core.PageRequest) (core.Page[core.Transaction], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := parsePage(r.URL.Query())
		if err != nil {
			writeError(w, r, err)
			return
		}
		page, err := list(r, p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeOK(w, r, msgTransactions, page)
	}
}

func (s *Server) handleAll() http.HandlerFunc {
	return pagedHandler(func(r *http.Request, p core.PageRequest) (core.Page[core.Transaction], error) {
		return s.queries.All(r.Context(), p)
	})
}

func (s *Server) handleByCustomer() http.HandlerFunc {
	return pagedHandler(func(r *http.Request, p core.PageRequest) (core.Page[core.Transaction], error) {
		return s.queries.ByCustomer(r.Context(), r.PathValue("customerId"), p)
	})
}

func (s *Server) handleByCategory() http.HandlerFunc {
	return pagedHandler(func(r *http.Request, p core.PageRequest) (core.Page[core.Transaction], error) {
		return s.queries.ByCategory(r.Context(), r.PathValue("category"), p)
	})
}

func (s *Server) handleBySource() http.HandlerFunc {
	return pagedHandler(func(r *http.Request, p core.PageRequest) (core.Page[core.Transaction], error) {
		return s.queries.BySource(r.Context(), r.PathValue("source"), p)
	})
}

func (s *Server) handleByDateRange() http.HandlerFunc {
	return pagedHandler(func(r *http.Request, p core.PageRequest) (core.Page[core.Transaction], error) {
		start, end, err := parseDateRange(r.URL.Query())
		if err != nil {
			return core.Page[core.Transaction]{}, err
		}
		return s.queries.ByDateRange(r.Context(), start, end, p)
	})
}

func (s *Server) handleFind() http.HandlerFunc {
	return pagedHandler(func(r *http.Request, p core.PageRequest) (core.Page[core.Transaction], error) {
		req, err := parseFindRequest(r.URL.Query())
		if err != nil {
			return core.Page[core.Transaction]{}, err
		}
		return s.queries.Find(r.Context(), req, p)
	})
}

func (s *Server) handleCustomerSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.queries.CustomerSummary(r.Context(), r.PathValue("customerId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "Customer summary retrieved successfully", summary)
}

func (s *Server) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.queries.CategorySummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "Category summary retrieved successfully", summary)
}

func (s *Server) handleSourceSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.queries.SourceSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "Source summary retrieved successfully", summary)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	names, err := s.queries.Categories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, "Categories retrieved successfully", names)
}
