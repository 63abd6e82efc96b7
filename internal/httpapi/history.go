package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dokzlo13/sensehatd/internal/ledger"
)

// maxHistoryLimit caps GET /history?limit=.
const maxHistoryLimit = 1000

// History serves GET /history.
type History interface {
	Query(ctx context.Context, f ledger.Filter) ([]ledger.Entry, error)
}

// WithHistory enables GET /history.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// GET /history?type=panel_changed,sink_failed&source=&since=&until=&limit=
// since and until are RFC3339 timestamps.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("history is disabled"))
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	entries, err := s.history.Query(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseFilter(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	f := ledger.Filter{Source: q.Get("source")}

	if raw := q.Get("type"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				f.Types = append(f.Types, ledger.EventType(t))
			}
		}
	}

	var err error
	if f.Since, err = parseTime(q.Get("since")); err != nil {
		return f, fmt.Errorf("since: %w", err)
	}
	if f.Until, err = parseTime(q.Get("until")); err != nil {
		return f, fmt.Errorf("until: %w", err)
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("limit must be a positive integer, got %q", raw)
		}
		f.Limit = min(n, maxHistoryLimit)
	}
	return f, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
