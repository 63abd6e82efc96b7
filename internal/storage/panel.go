package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sensehatd/internal/color"
	"github.com/dokzlo13/sensehatd/internal/panel"
)

// KindPanel is the resource_state kind for panel snapshots.
const KindPanel = "panel"

// PanelRecord is the persisted form of a panel.State.
// Color components are on the unit interval.
type PanelRecord struct {
	Power         bool      `json:"power"`
	Hue           float64   `json:"hue"`
	Saturation    float64   `json:"saturation"`
	Value         float64   `json:"value"`
	Blinking      bool      `json:"blinking"`
	BlinkPeriodMS int64     `json:"blink_period_ms,omitempty"`
	Seq           uint64    `json:"seq"`
	SavedAt       time.Time `json:"saved_at"`
}

// NewPanelRecord converts a snapshot.
func NewPanelRecord(st panel.State) PanelRecord {
	return PanelRecord{
		Power:         st.Power,
		Hue:           st.Color.Hue(),
		Saturation:    st.Color.Saturation(),
		Value:         st.Color.Value(),
		Blinking:      st.Blinking,
		BlinkPeriodMS: st.BlinkPeriod.Milliseconds(),
		Seq:           st.Seq,
		SavedAt:       time.Now().UTC(),
	}
}

// State converts the record back. Seq is not carried over since sequence
// numbers restart with every controller.
func (r PanelRecord) State() panel.State {
	return panel.State{
		Power:       r.Power,
		Color:       color.FromHSV(r.Hue, r.Saturation, r.Value),
		Blinking:    r.Blinking,
		BlinkPeriod: time.Duration(r.BlinkPeriodMS) * time.Millisecond,
	}
}

// PanelSnapshots persists the latest state of each panel.
// Snapshots may be delivered out of order by the event bus workers; a
// snapshot older than the last saved one for the same panel is skipped.
type PanelSnapshots struct {
	store *Store

	mu      sync.Mutex
	lastSeq map[string]uint64
}

func NewPanelSnapshots(store *Store) *PanelSnapshots {
	return &PanelSnapshots{
		store:   store,
		lastSeq: make(map[string]uint64),
	}
}

// Save stores st for the named panel. It reports false when st was skipped
// as stale.
func (p *PanelSnapshots) Save(name string, st panel.State) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.lastSeq[name]; ok && st.Seq <= last {
		log.Debug().
			Str("panel", name).
			Uint64("seq", st.Seq).
			Uint64("last_seq", last).
			Msg("Skipping stale panel snapshot")
		return false, nil
	}

	if err := p.store.PutJSON(KindPanel, name, NewPanelRecord(st)); err != nil {
		return false, err
	}
	p.lastSeq[name] = st.Seq
	return true, nil
}

// Load returns the last saved state for the named panel.
func (p *PanelSnapshots) Load(name string) (panel.State, bool, error) {
	var rec PanelRecord
	ok, err := p.store.GetJSON(KindPanel, name, &rec)
	if err != nil || !ok {
		return panel.State{}, false, err
	}
	return rec.State(), true, nil
}
