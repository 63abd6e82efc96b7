package storage

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sensehatd/internal/color"
	"github.com/dokzlo13/sensehatd/internal/db"
	"github.com/dokzlo13/sensehatd/internal/panel"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "state.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewStore(d.DB)
}

func TestStoreVersions(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.Get("panel", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := s.Put("panel", "a", []byte(`{"x":1}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = s.Put("panel", "a", []byte(`{"x":2}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	doc, ok, err := s.Get("panel", "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"x":2}`, string(doc.Payload))
	assert.Equal(t, int64(2), doc.Version)
	assert.WithinDuration(t, time.Now(), doc.UpdatedAt, time.Minute)

	_, err = s.Put("panel", "b", []byte(`{}`))
	require.NoError(t, err)
	_, err = s.Put("other", "c", []byte(`{}`))
	require.NoError(t, err)

	docs, err := s.List("panel")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, int64(1), docs[1].Version)

	require.NoError(t, s.Delete("panel", "a"))
	require.NoError(t, s.Delete("panel", "a"), "missing is fine")
	_, ok, err = s.Get("panel", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Clear("panel")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Clear("")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the other kind was left")
}

func TestStoreJSON(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.PutJSON("panel", "hat", map[string]int{"seq": 7}))

	var got map[string]int
	ok, err := s.GetJSON("panel", "hat", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, got["seq"])

	_, err = s.Put("panel", "broken", []byte("{"))
	require.NoError(t, err)
	_, err = s.GetJSON("panel", "broken", &got)
	assert.ErrorContains(t, err, "decode panel/broken")
}

func TestPanelSnapshotRoundTrip(t *testing.T) {
	snaps := NewPanelSnapshots(openStore(t))

	_, ok, err := snaps.Load("hat")
	require.NoError(t, err)
	assert.False(t, ok)

	st := panel.State{
		Power:       true,
		Color:       color.FromHSV(0.3, 0.8, 0.6),
		Blinking:    true,
		BlinkPeriod: 750 * time.Millisecond,
		Seq:         3,
	}
	saved, err := snaps.Save("hat", st)
	require.NoError(t, err)
	assert.True(t, saved)

	got, ok, err := snaps.Load("hat")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Power)
	assert.True(t, got.Blinking)
	assert.Equal(t, 750*time.Millisecond, got.BlinkPeriod)
	assert.InDelta(t, 0.3, got.Color.Hue(), 1e-12)
	assert.Equal(t, st.Color.RGB8(), got.Color.RGB8())
}

func TestPanelSnapshotSkipsStale(t *testing.T) {
	snaps := NewPanelSnapshots(openStore(t))

	saved, err := snaps.Save("hat", panel.State{Power: true, Color: color.Red, Seq: 5})
	require.NoError(t, err)
	require.True(t, saved)

	saved, err = snaps.Save("hat", panel.State{Power: false, Color: color.Blue, Seq: 4})
	require.NoError(t, err)
	assert.False(t, saved)

	got, _, err := snaps.Load("hat")
	require.NoError(t, err)
	assert.True(t, got.Power)
	assert.Equal(t, color.Red.RGB8(), got.Color.RGB8())

	// other panels are tracked separately
	saved, err = snaps.Save("other", panel.State{Seq: 1})
	require.NoError(t, err)
	assert.True(t, saved)
}

func TestPanelSnapshotConcurrentSaves(t *testing.T) {
	snaps := NewPanelSnapshots(openStore(t))

	var wg sync.WaitGroup
	for seq := uint64(1); seq <= 20; seq++ {
		wg.Add(1)
		go func(seq uint64) {
			defer wg.Done()
			_, err := snaps.Save("hat", panel.State{Power: true, Color: color.FromHSV(float64(seq)/40, 1, 1), Seq: seq})
			assert.NoError(t, err)
		}(seq)
	}
	wg.Wait()

	got, ok, err := snaps.Load("hat")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.5, got.Color.Hue(), 1e-12, "highest seq wins")
}
