package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facilitator-activity-tracker/internal/dto"
	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

type stubDetector struct {
	entries []dto.MissingEntry
	err     error
	panics  bool
}

func (d stubDetector) Detect(ctx context.Context) ([]dto.MissingEntry, error) {
	if d.panics {
		panic("detector exploded")
	}
	return d.entries, d.err
}

type deadlineCall struct {
	facilitatorID uint
	offeringID    uint
	week          int
}

type recordingDispatcher struct {
	mu        sync.Mutex
	reminders map[uint][]models.MissingWeek
	order     []uint
	deadlines []deadlineCall
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{reminders: map[uint][]models.MissingWeek{}}
}

func (d *recordingDispatcher) OnMissingLogs(ctx context.Context, facilitatorID uint, weeks []models.MissingWeek) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = append(d.order, facilitatorID)
	d.reminders[facilitatorID] = append(d.reminders[facilitatorID], weeks...)
}

func (d *recordingDispatcher) OnDeadlineMissed(ctx context.Context, facilitatorID, courseOfferingID uint, weekNumber int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deadlines = append(d.deadlines, deadlineCall{facilitatorID, courseOfferingID, weekNumber})
}

type memoryNotices struct {
	seen map[[2]int]bool
	err  error
}

func (m *memoryNotices) Record(ctx context.Context, courseOfferingID uint, weekNumber int) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	key := [2]int{int(courseOfferingID), weekNumber}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

func missingEntry(facilitatorID, offeringID uint, week int, dueAt time.Time) dto.MissingEntry {
	return dto.MissingEntry{
		CourseOfferingID: offeringID,
		Facilitator:      dto.FacilitatorSummary{ID: facilitatorID},
		WeekNumber:       week,
		DueAt:            dueAt,
	}
}

func TestSweepGroupsRemindersByFacilitator(t *testing.T) {
	now := time.Date(2024, 2, 5, 9, 0, 0, 0, time.UTC)
	detector := stubDetector{entries: []dto.MissingEntry{
		missingEntry(20, 1, 3, now.Add(-time.Hour)),
		missingEntry(10, 2, 1, now.Add(-time.Hour)),
		missingEntry(20, 1, 5, now.Add(time.Hour)),
		missingEntry(20, 3, 2, now.Add(-time.Hour)),
	}}
	dispatcher := newRecordingDispatcher()
	notices := &memoryNotices{seen: map[[2]int]bool{}}

	sweep := NewSweep(detector, dispatcher, notices, zerolog.Nop())
	sweep.now = func() time.Time { return now }

	result, err := sweep.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Missing: 4, Facilitators: 2, DeadlinesMissed: 3}, result)

	require.Equal(t, []uint{10, 20}, dispatcher.order)
	require.Equal(t, []models.MissingWeek{
		{CourseOfferingID: 1, WeekNumber: 3},
		{CourseOfferingID: 1, WeekNumber: 5},
		{CourseOfferingID: 3, WeekNumber: 2},
	}, dispatcher.reminders[20])
	require.ElementsMatch(t, []deadlineCall{{20, 1, 3}, {10, 2, 1}, {20, 3, 2}}, dispatcher.deadlines)

	again, err := sweep.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, again.DeadlinesMissed)
	require.Len(t, dispatcher.deadlines, 3)
}

func TestSweepWithoutNoticesSkipsDeadlines(t *testing.T) {
	now := time.Now()
	dispatcher := newRecordingDispatcher()
	sweep := NewSweep(stubDetector{entries: []dto.MissingEntry{missingEntry(1, 1, 1, now.Add(-time.Hour))}}, dispatcher, nil, zerolog.Nop())

	result, err := sweep.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Facilitators)
	require.Empty(t, dispatcher.deadlines)
}

func TestSweepNoticeFailureDoesNotAbort(t *testing.T) {
	now := time.Now()
	dispatcher := newRecordingDispatcher()
	notices := &memoryNotices{err: errors.New("db down")}
	sweep := NewSweep(stubDetector{entries: []dto.MissingEntry{missingEntry(1, 1, 1, now.Add(-time.Hour))}}, dispatcher, notices, zerolog.Nop())

	result, err := sweep.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Facilitators)
	require.Empty(t, dispatcher.deadlines)
}

func TestSweepReportsDetectorFailureAndPanic(t *testing.T) {
	dispatcher := newRecordingDispatcher()

	_, err := NewSweep(stubDetector{err: errors.New("query failed")}, dispatcher, nil, zerolog.Nop()).Run(context.Background())
	require.ErrorContains(t, err, "query failed")

	_, err = NewSweep(stubDetector{panics: true}, dispatcher, nil, zerolog.Nop()).Run(context.Background())
	require.ErrorContains(t, err, "detector exploded")
	require.Empty(t, dispatcher.order)
}

type countingRunner struct {
	runs atomic.Int32
	fail atomic.Bool
}

func (r *countingRunner) Run(ctx context.Context) (SweepResult, error) {
	r.runs.Add(1)
	if r.fail.Load() {
		return SweepResult{}, errors.New("sweep failed")
	}
	return SweepResult{Missing: 2}, nil
}

func TestSchedulerRunNowSurvivesFailures(t *testing.T) {
	runner := &countingRunner{}
	s, err := New(runner, Config{}, zerolog.Nop())
	require.NoError(t, err)

	runner.fail.Store(true)
	_, err = s.RunNow(context.Background())
	require.Error(t, err)

	runner.fail.Store(false)
	result, err := s.RunNow(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Missing)
	require.EqualValues(t, 2, runner.runs.Load())
}

func TestSchedulerRunsOnStartAndOnSchedule(t *testing.T) {
	runner := &countingRunner{}
	s, err := New(runner, Config{Schedule: "@every 1s", RunOnStart: true}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))

	require.Eventually(t, func() bool { return runner.runs.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	s.Stop(stopCtx)
}

func TestSchedulerRejectsInvalidConfig(t *testing.T) {
	_, err := New(&countingRunner{}, Config{Schedule: "every monday"}, zerolog.Nop())
	require.Error(t, err)

	_, err = New(&countingRunner{}, Config{Timezone: "Mars/Olympus"}, zerolog.Nop())
	require.Error(t, err)
}
