package ticket

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pyama86/ticketbot/clock"
	"github.com/pyama86/ticketbot/domain/infra"
	"github.com/pyama86/ticketbot/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fired struct {
	mu    sync.Mutex
	tasks []model.AutocloseTask
}

func (f *fired) fire(ctx context.Context, task model.AutocloseTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
}

func (f *fired) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func newTestScheduler(t *testing.T) (*Scheduler, *infra.DataBase, *clock.FakeClock, *fired) {
	t.Helper()
	ds, err := infra.OpenDataBase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	clk := clock.Fake(testStart)
	f := &fired{}
	return NewScheduler(ds, clk, newKeyMutex(), f.fire), ds, clk, f
}

func TestScheduler_Fire(t *testing.T) {
	s, ds, clk, f := newTestScheduler(t)

	require.NoError(t, s.Schedule("c1", model.TaskAutoclose, testStart.Add(time.Hour), "idle", "staff"))
	assert.True(t, s.Armed("c1", model.TaskAutoclose))

	clk.Advance(59 * time.Minute)
	assert.Equal(t, 0, f.count())

	clk.Advance(time.Minute)
	require.Equal(t, 1, f.count())
	assert.Equal(t, "idle", f.tasks[0].Reason)
	assert.Equal(t, "staff", f.tasks[0].ActorID)
	assert.False(t, s.Armed("c1", model.TaskAutoclose))

	task, err := ds.GetAutocloseTask("c1", model.TaskAutoclose)
	assert.NoError(t, err)
	assert.Nil(t, task)
}

func TestScheduler_Reschedule(t *testing.T) {
	s, _, clk, f := newTestScheduler(t)

	require.NoError(t, s.Schedule("c1", model.TaskSelect, testStart.Add(10*time.Minute), "", ""))
	require.NoError(t, s.Schedule("c1", model.TaskSelect, testStart.Add(20*time.Minute), "", ""))

	clk.Advance(15 * time.Minute)
	assert.Equal(t, 0, f.count())
	clk.Advance(5 * time.Minute)
	assert.Equal(t, 1, f.count())
}

func TestScheduler_KindsAreIndependent(t *testing.T) {
	s, _, clk, f := newTestScheduler(t)

	require.NoError(t, s.Schedule("c1", model.TaskSelect, testStart.Add(time.Minute), "", ""))
	require.NoError(t, s.Schedule("c1", model.TaskAutoclose, testStart.Add(time.Minute), "", ""))
	require.NoError(t, s.Cancel("c1", model.TaskSelect))

	clk.Advance(time.Minute)
	require.Equal(t, 1, f.count())
	assert.Equal(t, model.TaskAutoclose, f.tasks[0].Kind)
}

func TestScheduler_CancelAll(t *testing.T) {
	s, ds, clk, f := newTestScheduler(t)

	for _, kind := range model.TaskKinds {
		require.NoError(t, s.Schedule("c1", kind, testStart.Add(time.Minute), "", ""))
	}
	require.NoError(t, s.Schedule("c2", model.TaskAutoclose, testStart.Add(time.Minute), "", ""))
	require.NoError(t, s.CancelAll("c1"))
	// canceling nothing is fine
	require.NoError(t, s.Cancel("c3", model.TaskAutoclose))

	tasks, err := ds.GetAutocloseTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "c2", tasks[0].ChannelID)

	clk.Advance(time.Minute)
	assert.Equal(t, 1, f.count())
}

func TestScheduler_RowDeletedBehindTimer(t *testing.T) {
	s, ds, clk, f := newTestScheduler(t)

	require.NoError(t, s.Schedule("c1", model.TaskAutoclose, testStart.Add(time.Minute), "", ""))
	require.NoError(t, ds.DeleteAutocloseTask("c1", model.TaskAutoclose))

	clk.Advance(time.Minute)
	assert.Equal(t, 0, f.count())
}

func TestScheduler_Rehydrate(t *testing.T) {
	s, ds, _, _ := newTestScheduler(t)
	require.NoError(t, s.Schedule("c1", model.TaskAutoclose, testStart.Add(time.Hour), "idle", ""))
	require.NoError(t, s.Schedule("c2", model.TaskSelect, testStart.Add(-time.Minute), "", ""))

	clk := clock.Fake(testStart.Add(30 * time.Minute))
	f := &fired{}
	restarted := NewScheduler(ds, clk, newKeyMutex(), f.fire)
	n, err := restarted.Rehydrate()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// overdue tasks fire on the next tick
	clk.Advance(0)
	require.Equal(t, 1, f.count())
	assert.Equal(t, "c2", f.tasks[0].ChannelID)

	clk.Advance(30 * time.Minute)
	assert.Equal(t, 2, f.count())
}

type flakyStore struct {
	*infra.DataBase
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *flakyStore) GetAutocloseTask(channelID string, kind model.TaskKind) (*model.AutocloseTask, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, errFake
	}
	return f.DataBase.GetAutocloseTask(channelID, kind)
}

func TestScheduler_RetriesUnreadableRow(t *testing.T) {
	ds, err := infra.OpenDataBase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	store := &flakyStore{DataBase: ds}
	clk := clock.Fake(testStart)
	f := &fired{}
	s := NewScheduler(store, clk, newKeyMutex(), f.fire)

	require.NoError(t, s.Schedule("c1", model.TaskAutoclose, testStart.Add(time.Minute), "idle", ""))
	store.setFail(true)

	clk.Advance(time.Minute)
	assert.Equal(t, 0, f.count())
	assert.True(t, s.Armed("c1", model.TaskAutoclose))

	store.setFail(false)
	clk.Advance(retryDelay)
	require.Equal(t, 1, f.count())
	assert.Equal(t, "idle", f.tasks[0].Reason)
	assert.False(t, s.Armed("c1", model.TaskAutoclose))
}
