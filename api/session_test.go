package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedSessions(t *testing.T, maxSessions int, ttl time.Duration) (*Sessions, *fakeClock) {
	clock := &fakeClock{t: testNow}
	s := NewSessions(maxSessions, ttl, zaptest.NewLogger(t))
	s.now = clock.now
	return s, clock
}

func TestSessions_Limit(t *testing.T) {
	sessions, _ := newClockedSessions(t, 2, time.Hour)

	a, err := sessions.Create()
	require.NoError(t, err)
	_, err = sessions.Create()
	require.NoError(t, err)

	_, err = sessions.Create()
	assert.ErrorIs(t, err, ErrTooManySessions)

	require.NoError(t, sessions.Delete(a.ID))
	_, err = sessions.Create()
	assert.NoError(t, err)

	assert.ErrorIs(t, sessions.Delete("nope"), ErrSessionNotFound)
}

func TestSessions_Prune(t *testing.T) {
	// GIVEN: two sessions, one used recently
	sessions, clock := newClockedSessions(t, 10, time.Hour)
	idle, err := sessions.Create()
	require.NoError(t, err)
	active, err := sessions.Create()
	require.NoError(t, err)

	clock.advance(45 * time.Minute)
	_, err = sessions.Get(active.ID)
	require.NoError(t, err)

	// WHEN: the idle one passes the TTL
	clock.advance(30 * time.Minute)
	dropped := sessions.Prune()

	// THEN: only it is dropped
	assert.Equal(t, []string{idle.ID}, dropped)
	assert.Equal(t, 1, sessions.Len())
	_, err = sessions.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessions_ZeroTTLNeverPrunes(t *testing.T) {
	sessions, clock := newClockedSessions(t, 0, 0)
	_, err := sessions.Create()
	require.NoError(t, err)

	clock.advance(1000 * time.Hour)
	assert.Empty(t, sessions.Prune())
	assert.Equal(t, 1, sessions.Len())
}

func TestSessionSweeper(t *testing.T) {
	sessions, clock := newClockedSessions(t, 10, time.Minute)
	_, err := sessions.Create()
	require.NoError(t, err)

	sweeper := NewSessionSweeper(sessions, 0, zaptest.NewLogger(t))
	sweeper.Start() // disabled: no ticker
	assert.Nil(t, sweeper.ticker)
	sweeper.Stop()

	assert.Equal(t, 0, sweeper.Sweep())
	clock.advance(2 * time.Minute)
	assert.Equal(t, 1, sweeper.Sweep())
	assert.Equal(t, 0, sessions.Len())
}

func TestSessionSweeper_StartStop(t *testing.T) {
	sessions, _ := newClockedSessions(t, 10, time.Minute)
	sweeper := NewSessionSweeper(sessions, time.Hour, zaptest.NewLogger(t))

	sweeper.Start()
	sweeper.Start()
	assert.NotNil(t, sweeper.ticker)
	sweeper.Stop()
	sweeper.Stop()
	assert.Nil(t, sweeper.ticker)
}

func TestRequireSession(t *testing.T) {
	c := newTestClient(t)

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/work-orders", nil)
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/work-orders", nil)
		req.Header.Set(SessionHeader, "not-a-session")
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("sessions are isolated", func(t *testing.T) {
		other := &testClient{t: t, router: c.router, handler: c.handler, sessions: c.sessions}
		var s SessionDTO
		other.expect(http.MethodPost, "/api/sessions", nil, http.StatusCreated, &s)
		other.session = s.ID

		c.seedHardware()
		var list struct {
			WorkOrders []workOrderBody `json:"work_orders"`
		}
		other.expect(http.MethodGet, "/api/work-orders", nil, http.StatusOK, &list)
		assert.Empty(t, list.WorkOrders)
	})
}

func TestSessionLifecycle(t *testing.T) {
	c := newTestClient(t)

	var s SessionDTO
	c.expect(http.MethodGet, "/api/session", nil, http.StatusOK, &s)
	assert.Equal(t, c.session, s.ID)
	assert.Equal(t, testNow.Format(time.RFC3339), s.CreatedAt)
	assert.Empty(t, s.Scenario)

	c.expect(http.MethodDelete, "/api/sessions/"+c.session, nil, http.StatusNoContent, nil)
	c.expectError(http.MethodDelete, "/api/sessions/"+c.session, nil, http.StatusNotFound)
	c.expectError(http.MethodGet, "/api/session", nil, http.StatusNotFound)
}

func TestCreateSession_Limit(t *testing.T) {
	sessions := NewSessions(1, time.Hour, zaptest.NewLogger(t))
	router := NewRouter(NewHandler(sessions), nil)

	for _, want := range []int{http.StatusCreated, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
		assert.Equal(t, want, rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	c := newTestClient(t)
	var body map[string]any
	c.expect(http.MethodGet, "/healthz", nil, http.StatusOK, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["sessions"])
}
