package spacecowbot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns a controllable time source for timer tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestStudyTimer(clock *fakeClock) *studyTimer {
	timer := newStudyTimer(time.Minute, time.Hour)
	timer.clock = clock.Now
	return timer
}

func TestStudyTimerStartStop(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Now()}
	timer := newTestStudyTimer(clock)

	require.NoError(t, timer.Start("user-1"))
	clock.Advance(25 * time.Minute)

	elapsed, err := timer.Stop("user-1")
	require.NoError(t, err)
	assert.Equal(t, 25*time.Minute, elapsed)
}

func TestStudyTimerStartCooldown(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Now()}
	timer := newTestStudyTimer(clock)

	require.NoError(t, timer.Start("user-1"))
	_, err := timer.Stop("user-1")
	require.NoError(t, err)

	assert.ErrorIs(t, timer.Start("user-1"), ErrStudyCooldown)

	clock.Advance(time.Minute)
	assert.NoError(t, timer.Start("user-1"))
}

func TestStudyTimerSlotOccupied(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Now()}
	timer := newTestStudyTimer(clock)

	require.NoError(t, timer.Start("user-1"))
	assert.ErrorIs(t, timer.Start("user-2"), ErrStudyRunning)

	// The failed attempt still burns user-2's cooldown
	clock.Advance(time.Second)
	assert.ErrorIs(t, timer.Start("user-2"), ErrStudyCooldown)
}

func TestStudyTimerStopWithoutSession(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Now()}
	timer := newTestStudyTimer(clock)

	_, err := timer.Stop("user-1")
	assert.ErrorIs(t, err, ErrNoStudySession)
}

func TestStudyTimerStopByNonOwner(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Now()}
	timer := newTestStudyTimer(clock)

	require.NoError(t, timer.Start("user-1"))
	_, err := timer.Stop("user-2")
	assert.ErrorIs(t, err, ErrNotSessionOwner)

	// Owner can still stop it
	_, err = timer.Stop("user-1")
	assert.NoError(t, err)
}

func TestStudyTimerExpiredSession(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Now()}
	timer := newTestStudyTimer(clock)

	require.NoError(t, timer.Start("user-1"))
	clock.Advance(2 * time.Hour)

	_, err := timer.Stop("user-1")
	assert.ErrorIs(t, err, ErrStudyExpired)

	// Slot released after expiry
	clock.Advance(time.Minute)
	assert.NoError(t, timer.Start("user-2"))
}

func TestStudyTimerExactMaxAgeStillCredits(t *testing.T) {
	t.Parallel()
	clock := &fakeClock{now: time.Now()}
	timer := newTestStudyTimer(clock)

	// A session of exactly the max age is not expired; only strictly
	// longer sessions are.
	require.NoError(t, timer.Start("user-1"))
	clock.Advance(time.Hour)

	elapsed, err := timer.Stop("user-1")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, elapsed)

	clock.Advance(time.Minute)
	require.NoError(t, timer.Start("user-2"))
	clock.Advance(time.Hour + time.Second)

	_, err = timer.Stop("user-2")
	assert.ErrorIs(t, err, ErrStudyExpired)
}

func TestHandleStartStudy(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	require.NoError(t, bot.db.CreditPoints(ctx, 111, 40))

	err := bot.handleStartStudy(ctx, newMessage("111", "chan-1", "!startstudy"), nil)
	require.NoError(t, err)

	require.Len(t, session.sentMessages(), 1)
	assert.Contains(t, session.sentMessages()[0].Content, "You currently have 40 points")
}

func TestHandleStartStudyCooldownMessage(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	m := newMessage("111", "chan-1", "!startstudy")
	require.NoError(t, bot.handleStartStudy(ctx, m, nil))
	require.NoError(t, bot.handleStopStudy(ctx, m, nil))

	require.NoError(t, bot.handleStartStudy(ctx, m, nil))
	assert.True(t, session.sentContains(t, messageStudyCooldown))
}

func TestHandleStopStudyCreditsMinutes(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	clock := &fakeClock{now: time.Now()}
	bot.studyTimer.clock = clock.Now

	m := newMessage("111", "chan-1", "!startstudy")
	require.NoError(t, bot.handleStartStudy(ctx, m, nil))

	clock.Advance(12*time.Minute + 30*time.Second)
	require.NoError(t, bot.handleStopStudy(ctx, m, nil))

	assert.True(t, session.sentContains(t, "you studied for 12 minutes and earned 12 points!"))

	points, found, err := bot.db.UserPoints(ctx, 111)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(12), points)
}

func TestHandleStopStudyNoTimer(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})

	err := bot.handleStopStudy(
		context.Background(),
		newMessage("111", "chan-1", "!stopstudy"),
		nil,
	)
	require.NoError(t, err)
	assert.True(t, session.sentContains(t, messageStudyStopped))
}

func TestHandleStopStudyExpired(t *testing.T) {
	session := newMockSession()
	bot := newTestBot(t, session, &fakeChat{})
	ctx := context.Background()

	clock := &fakeClock{now: time.Now()}
	bot.studyTimer.clock = clock.Now

	m := newMessage("111", "chan-1", "!startstudy")
	require.NoError(t, bot.handleStartStudy(ctx, m, nil))

	clock.Advance(90 * time.Minute)
	require.NoError(t, bot.handleStopStudy(ctx, m, nil))

	assert.True(t, session.sentContains(t, messageStudyExpired))

	// No points for expired sessions
	_, found, err := bot.db.UserPoints(ctx, 111)
	require.NoError(t, err)
	assert.False(t, found)
}
