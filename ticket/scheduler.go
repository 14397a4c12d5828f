package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pyama86/ticketbot/clock"
	"github.com/pyama86/ticketbot/domain/infra"
	"github.com/pyama86/ticketbot/domain/model"
)

// FireFunc is called with the channel lock held once a task is due.
type FireFunc func(ctx context.Context, task model.AutocloseTask)

// retryDelay is how long a due task waits when its row cannot be read.
const retryDelay = time.Minute

type taskKey struct {
	channelID string
	kind      model.TaskKind
}

type armedTimer struct {
	timer clock.Timer
	gen   uint64
}

// Scheduler keeps one timer per (channel, kind). Rows in the datastore are
// the source of truth; timers only say when to look at them again.
type Scheduler struct {
	ds     infra.Datastore
	clock  clock.Clock
	locks  *keyMutex
	onFire FireFunc

	mu     sync.Mutex
	gen    uint64
	timers map[taskKey]armedTimer
}

func NewScheduler(ds infra.Datastore, clk clock.Clock, locks *keyMutex, onFire FireFunc) *Scheduler {
	return &Scheduler{
		ds:     ds,
		clock:  clk,
		locks:  locks,
		onFire: onFire,
		timers: map[taskKey]armedTimer{},
	}
}

// Schedule upserts the task row and arms its timer. A fireAt in the past
// fires on the next tick.
func (s *Scheduler) Schedule(channelID string, kind model.TaskKind, fireAt time.Time, reason, actorID string) error {
	task := &model.AutocloseTask{
		ChannelID: channelID,
		Kind:      kind,
		FireAt:    fireAt,
		Reason:    reason,
		ActorID:   actorID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.ds.SaveAutocloseTask(task); err != nil {
		return fmt.Errorf("SaveAutocloseTask failed: %w", err)
	}
	s.arm(taskKey{channelID, kind}, fireAt)
	return nil
}

// Cancel is a no-op when nothing is scheduled.
func (s *Scheduler) Cancel(channelID string, kind model.TaskKind) error {
	s.disarm(taskKey{channelID, kind})
	if err := s.ds.DeleteAutocloseTask(channelID, kind); err != nil {
		return fmt.Errorf("DeleteAutocloseTask failed: %w", err)
	}
	return nil
}

func (s *Scheduler) CancelAll(channelID string) error {
	var errs []error
	for _, kind := range model.TaskKinds {
		if err := s.Cancel(channelID, kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Rehydrate arms a timer for every persisted task.
func (s *Scheduler) Rehydrate() (int, error) {
	tasks, err := s.ds.GetAutocloseTasks()
	if err != nil {
		return 0, fmt.Errorf("GetAutocloseTasks failed: %w", err)
	}
	for _, task := range tasks {
		s.arm(taskKey{task.ChannelID, task.Kind}, task.FireAt)
	}
	return len(tasks), nil
}

func (s *Scheduler) Armed(channelID string, kind model.TaskKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[taskKey{channelID, kind}]
	return ok
}

func (s *Scheduler) arm(key taskKey, fireAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[key]; ok {
		prev.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timers[key] = armedTimer{
		gen:   gen,
		timer: s.clock.AfterFunc(fireAt.Sub(s.clock.Now()), func() { s.fire(key, gen) }),
	}
}

func (s *Scheduler) disarm(key taskKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.timers[key]; ok {
		prev.timer.Stop()
		delete(s.timers, key)
	}
}

func (s *Scheduler) fire(key taskKey, gen uint64) {
	unlock := s.locks.Lock(key.channelID)
	defer unlock()

	// rescheduled or canceled while waiting for the lock
	s.mu.Lock()
	cur, ok := s.timers[key]
	if !ok || cur.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.timers, key)
	s.mu.Unlock()

	task, err := s.ds.GetAutocloseTask(key.channelID, key.kind)
	if err != nil {
		slog.Error("GetAutocloseTask failed", slog.Any("err", err), slog.String("channel", key.channelID), slog.String("kind", string(key.kind)))
		s.arm(key, s.clock.Now().Add(retryDelay))
		return
	}
	if task == nil {
		return
	}
	if task.FireAt.After(s.clock.Now()) {
		s.arm(key, task.FireAt)
		return
	}

	s.onFire(context.Background(), *task)

	if err := s.ds.DeleteAutocloseTask(key.channelID, key.kind); err != nil {
		slog.Error("DeleteAutocloseTask failed", slog.Any("err", err), slog.String("channel", key.channelID), slog.String("kind", string(key.kind)))
	}
}
