package encoder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTable reports the encoder as running once it has been launched.
type fakeTable struct {
	mu      sync.Mutex
	running int32
	err     error
}

func (f *fakeTable) Find(context.Context, string) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running, f.err
}

type fakeLauncher struct {
	table    *fakeTable
	launches atomic.Int32
	args     []string
	err      error
}

func (f *fakeLauncher) Launch(name string, args ...string) (int32, error) {
	if f.err != nil {
		return 0, f.err
	}
	// widen the race window for the concurrency test
	time.Sleep(5 * time.Millisecond)

	f.launches.Add(1)
	f.args = append([]string{name}, args...)

	f.table.mu.Lock()
	f.table.running = 4242
	f.table.mu.Unlock()
	return 4242, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnsureRunning_Launches(t *testing.T) {
	table := &fakeTable{}
	l := &fakeLauncher{table: table}
	s := NewWith(Config{}, table, l, testLogger())

	pid, launched, err := s.EnsureRunning(context.Background())
	require.NoError(t, err)
	assert.True(t, launched)
	assert.Equal(t, int32(4242), pid)
	assert.Equal(t, []string{"darkice", "-c", "/etc/darkice.cfg"}, l.args)
}

func TestEnsureRunning_AlreadyRunning(t *testing.T) {
	table := &fakeTable{running: 17}
	l := &fakeLauncher{table: table}
	s := NewWith(Config{Name: "darkice"}, table, l, testLogger())

	pid, launched, err := s.EnsureRunning(context.Background())
	require.NoError(t, err)
	assert.False(t, launched)
	assert.Equal(t, int32(17), pid)
	assert.Zero(t, l.launches.Load())
}

func TestEnsureRunning_ConcurrentCallersLaunchOnce(t *testing.T) {
	table := &fakeTable{}
	l := &fakeLauncher{table: table}
	s := NewWith(Config{}, table, l, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.EnsureRunning(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), l.launches.Load())
}

func TestEnsureRunning_Errors(t *testing.T) {
	boom := errors.New("boom")

	s := NewWith(Config{}, &fakeTable{err: boom}, &fakeLauncher{table: &fakeTable{}}, testLogger())
	_, _, err := s.EnsureRunning(context.Background())
	require.ErrorIs(t, err, boom)

	table := &fakeTable{}
	s = NewWith(Config{}, table, &fakeLauncher{table: table, err: boom}, testLogger())
	_, launched, err := s.EnsureRunning(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, launched)
}

func TestProcessTable_FindsSelf(t *testing.T) {
	self, err := process.NewProcess(int32(os.Getpid()))
	require.NoError(t, err)
	name, err := self.Name()
	require.NoError(t, err)

	pid, err := ProcessTable{}.Find(context.Background(), name)
	require.NoError(t, err)
	assert.NotZero(t, pid)

	pid, err = ProcessTable{}.Find(context.Background(), "no-such-encoder-binary")
	require.NoError(t, err)
	assert.Zero(t, pid)
}
