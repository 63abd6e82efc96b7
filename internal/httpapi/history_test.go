package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sensehatd/internal/ledger"
)

type recordingHistory struct {
	got     ledger.Filter
	entries []ledger.Entry
	err     error
}

func (h *recordingHistory) Query(_ context.Context, f ledger.Filter) ([]ledger.Entry, error) {
	h.got = f
	return h.entries, h.err
}

func TestGetHistory(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := &recordingHistory{entries: []ledger.Entry{{
		ID:        7,
		EventType: ledger.EventPanelChanged,
		Timestamp: ts,
		Source:    "Sense HAT",
		Payload:   map[string]any{"power": true},
	}}}
	f := newFixture(t, false, WithHistory(h))

	rec := f.do(t, http.MethodGet, "/history?type=panel_changed,+sink_failed&source=Sense+HAT&since=2026-03-01T00:00:00Z&limit=5000", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, []ledger.EventType{ledger.EventPanelChanged, ledger.EventSinkFailed}, h.got.Types)
	assert.Equal(t, "Sense HAT", h.got.Source)
	assert.True(t, h.got.Since.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, h.got.Until.IsZero())
	assert.Equal(t, maxHistoryLimit, h.got.Limit)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "panel_changed", body[0]["type"])
	assert.Equal(t, "2026-03-01T12:00:00Z", body[0]["timestamp"])
	assert.NotContains(t, body[0], "IdempotencyKey")
}

func TestGetHistoryEmptyIsArray(t *testing.T) {
	f := newFixture(t, false, WithHistory(&recordingHistory{}))

	rec := f.do(t, http.MethodGet, "/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetHistoryErrors(t *testing.T) {
	tests := []struct {
		name   string
		opts   []Option
		path   string
		status int
	}{
		{"disabled", nil, "/history", http.StatusNotFound},
		{"bad since", []Option{WithHistory(&recordingHistory{})}, "/history?since=yesterday", http.StatusBadRequest},
		{"bad limit", []Option{WithHistory(&recordingHistory{})}, "/history?limit=-1", http.StatusBadRequest},
		{"query fails", []Option{WithHistory(&recordingHistory{err: errors.New("disk I/O error")})}, "/history", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false, tt.opts...)
			rec := f.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}
