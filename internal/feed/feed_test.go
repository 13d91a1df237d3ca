package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/czsc/internal/bar"
)

func TestReplaySourceParsesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.csv")
	content := "symbol,dt,open,high,low,close,vol\n" +
		"BTCUSD,2024-01-01T00:00:00Z,10,12,9,11,100\n" +
		"BTCUSD,2024-01-01T01:00:00Z,11,13,10,12,110\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src, err := NewReplaySource(path, "BTCUSD")
	require.NoError(t, err)

	ctx := context.Background()
	b1, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12.0, b1.High)
	assert.Equal(t, 9.0, b1.Low)

	_, err = src.Next(ctx)
	require.NoError(t, err, "second bar")

	_, err = src.Next(ctx)
	assert.True(t, errors.Is(err, ErrSourceExhausted), "expected ErrSourceExhausted, got %v", err)
}

func TestReplaySourceParsesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.jsonl")
	content := `{"dt":"2024-01-01T00:00:00Z","open":10,"high":12,"low":9,"close":11,"vol":100}` + "\n" +
		`{"dt":"2024-01-01T01:00:00Z","open":11,"high":13,"low":10,"close":12,"vol":110}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src, err := NewReplaySource(path, "ETHUSD")
	require.NoError(t, err)
	b1, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ETHUSD", b1.Symbol, "expected symbol backfilled from caller")
}

type fakeUpdater struct {
	updates []bar.RawBar
}

func (f *fakeUpdater) Update(b bar.RawBar) error {
	f.updates = append(f.updates, b)
	return nil
}

func TestPollerDrainsReplaySourceIntoUpdater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bars.jsonl")
	content := `{"dt":"2024-01-01T00:00:00Z","open":10,"high":12,"low":9,"close":11,"vol":100}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	src, err := NewReplaySource(path, "BTCUSD")
	require.NoError(t, err)

	upd := &fakeUpdater{}
	poller := NewPoller("BTCUSD", src, upd, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, poller.Run(ctx))
	assert.Len(t, upd.updates, 1)
}

type failingSource struct{ calls int }

func (f *failingSource) Next(ctx context.Context) (bar.RawBar, error) {
	f.calls++
	return bar.RawBar{}, errors.New("boom")
}

func TestPollerPropagatesSourceErrors(t *testing.T) {
	upd := &fakeUpdater{}
	poller := NewPoller("BTCUSD", &failingSource{}, upd, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, poller.Run(ctx), "expected error from failing source")
}
