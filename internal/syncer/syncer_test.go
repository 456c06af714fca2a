package syncer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/appointment-assistant/sessionsync/internal/config"
	"github.com/appointment-assistant/sessionsync/internal/event"
	"github.com/appointment-assistant/sessionsync/internal/rpc"
	"github.com/appointment-assistant/sessionsync/internal/session"
	"github.com/appointment-assistant/sessionsync/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	successAck = `{"status":"success","success":true}`

	bookedPayload    = `{"appointment_id":"1","user_name":"Alice","date":"2026-01-21","time":"10:00","display":"Jan 21, 10:00 AM"}`
	cancelledPayload = `{"appointment_id":"1","date":"2026-01-21","time":"10:00"}`
)

var t0 = time.Date(2026, 1, 21, 9, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return t0 }), WithTicks(make(chan time.Time))}, opts...)
	s := New(config.Default(), nil, opts...)
	t.Cleanup(s.Close)
	return s
}

func call(t *testing.T, s *Session, method, payload string) string {
	t.Helper()
	resp, err := s.Table()[method](context.Background(), payload)
	if err != nil {
		return transport.Failure(err.Error())
	}
	return resp
}

// connect returns an agent-side peer talking to s over a real websocket.
func connect(t *testing.T, s *Session) *rpc.Peer {
	t.Helper()

	peers := make(chan *rpc.Peer, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		peers <- rpc.NewPeer(c, rpc.Options{ResponseTimeout: 2 * time.Second}, nil)
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	frontend, err := rpc.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "", rpc.Options{}, nil)
	require.NoError(t, err)
	release, err := s.Open(frontend)
	require.NoError(t, err)
	t.Cleanup(release)
	go frontend.Run(ctx)

	agent := <-peers
	go agent.Run(ctx)
	return agent
}

func TestBookedThenCancelledOverWebsocket(t *testing.T) {
	s := newTestSession(t)
	agent := connect(t, s)

	resp, err := agent.Perform(context.Background(), event.MethodAppointmentBooked, bookedPayload)
	require.NoError(t, err)
	assert.JSONEq(t, successAck, resp)

	resp, err = agent.Perform(context.Background(), event.MethodAppointmentCancelled, cancelledPayload)
	require.NoError(t, err)
	assert.JSONEq(t, successAck, resp)

	st := s.Store().State()
	require.Len(t, st.Appointments, 1)
	a := st.Appointments[0]
	assert.Equal(t, "1", a.ID)
	assert.Equal(t, "Alice", a.UserName)
	assert.Equal(t, session.Cancelled, a.Status)
	assert.Equal(t, "2026-01-21", a.AppointmentDate)
	assert.Equal(t, "10:00", a.AppointmentTime)
	assert.Nil(t, a.ContactNumber)
}

func TestModifiedUpdatesDateTimeDisplay(t *testing.T) {
	s := newTestSession(t)
	assert.JSONEq(t, successAck, call(t, s, event.MethodAppointmentBooked, bookedPayload))
	assert.JSONEq(t, successAck, call(t, s, event.MethodAppointmentModified,
		`{"appointment_id":"1","old_date":"2026-01-21","old_time":"10:00","new_date":"2026-01-22","new_time":"14:30","display":"Jan 22, 2:30 PM"}`))

	a := s.Store().State().Appointments[0]
	assert.Equal(t, session.Modified, a.Status)
	assert.Equal(t, "2026-01-22", a.AppointmentDate)
	assert.Equal(t, "14:30", a.AppointmentTime)
	assert.Equal(t, "Jan 22, 2:30 PM", *a.Display)
}

func TestDecodeFailureLeavesStateUnchanged(t *testing.T) {
	var notices []Notice
	s := newTestSession(t, WithNotices(func(n Notice) { notices = append(notices, n) }))
	before := s.Store().Snapshot()

	resp := call(t, s, event.MethodAppointmentBooked, `{"appointment_id":"x","user_name":"Y"}`)
	assert.Contains(t, resp, `"status":"error"`)
	assert.Contains(t, resp, "date")

	after := s.Store().Snapshot()
	assert.Equal(t, before.Version, after.Version)
	assert.Empty(t, after.State.Appointments)

	require.Len(t, notices, 1)
	var de *event.DecodeError
	assert.True(t, errors.As(notices[0].Err, &de))
	assert.Equal(t, t0, notices[0].At)
}

func TestUnknownIDIsSilentNoop(t *testing.T) {
	s := newTestSession(t)
	assert.JSONEq(t, successAck, call(t, s, event.MethodAppointmentCancelled, `{"appointment_id":"missing"}`))
	assert.Empty(t, s.Store().State().Appointments)
}

func TestConversationSummarySetsSummaryAndUser(t *testing.T) {
	s := newTestSession(t)
	resp := call(t, s, event.MethodConversationSummary, `{
		"summary": "You booked one appointment.",
		"appointments": [{"date":"2026-01-21","time":"10:00","status":"active"}],
		"costs": {"llm_cost":0.01,"tts_cost":0.02,"stt_cost":0.03,"total_cost":0.06},
		"user": {"contact_number":"5551234567","name":"Alice"}
	}`)
	assert.JSONEq(t, successAck, resp)

	st := s.Store().State()
	require.NotNil(t, st.Summary)
	assert.Equal(t, "You booked one appointment.", st.Summary.Summary)
	require.NotNil(t, st.User)
	assert.Equal(t, "5551234567", st.User.ContactNumber)

	masked := New(&config.Config{
		Session: config.Default().Session,
		Privacy: config.PrivacyConfig{MaskContactNumbers: true},
	}, nil)
	defer masked.Close()
	assert.Equal(t, "******4567", masked.Masked(st).User.ContactNumber)
	assert.Equal(t, "5551234567", st.User.ContactNumber)
}

func TestConversationSummaryIsOneCommit(t *testing.T) {
	s := newTestSession(t)

	var snaps []session.Snapshot
	s.Store().Subscribe(func(snap session.Snapshot) { snaps = append(snaps, snap) })

	resp := call(t, s, event.MethodConversationSummary,
		`{"summary":"Goodbye.","user":{"contact_number":"5551234567","name":"Alice"}}`)
	assert.JSONEq(t, successAck, resp)

	require.Len(t, snaps, 1)
	assert.Equal(t, uint64(1), snaps[0].Version)
	require.NotNil(t, snaps[0].State.Summary)
	require.NotNil(t, snaps[0].State.User)
	assert.Equal(t, "Alice", *snaps[0].State.User.Name)
}

func TestConversationSummaryOnClosedSessionChangesNothing(t *testing.T) {
	s := newTestSession(t)
	s.Close()

	resp := call(t, s, event.MethodConversationSummary,
		`{"summary":"Goodbye.","user":{"contact_number":"5551234567"}}`)
	assert.Contains(t, resp, `"status":"error"`)
	st := s.Store().State()
	assert.Nil(t, st.Summary)
	assert.Nil(t, st.User)
}

func TestToolCallUpdateIsAcknowledgedOnly(t *testing.T) {
	var notices []Notice
	s := newTestSession(t, WithNotices(func(n Notice) { notices = append(notices, n) }))
	before := s.Store().Snapshot().Version

	assert.JSONEq(t, successAck, call(t, s, event.MethodToolCallUpdate, "anything at all"))
	assert.Equal(t, before, s.Store().Snapshot().Version)
	require.Len(t, notices, 1)
	assert.Equal(t, event.ToolCallUpdate{Payload: "anything at all"}, notices[0].Event)
}

func TestClosedSessionStillResponds(t *testing.T) {
	s := New(config.Default(), nil)
	table := s.Table()
	s.Close()
	s.Close()

	resp, err := table[event.MethodAppointmentBooked](context.Background(), bookedPayload)
	assert.Empty(t, resp)
	assert.ErrorIs(t, err, session.ErrClosed)
	assert.Empty(t, s.Store().State().Appointments)

	_, err = s.Open(nil)
	assert.ErrorIs(t, err, transport.ErrTransportUnavailable)
}

func TestHandlerAfterReleaseOverWebsocket(t *testing.T) {
	s := newTestSession(t)
	agent := connect(t, s)
	s.Close()

	_, err := agent.Perform(context.Background(), event.MethodAppointmentBooked, bookedPayload)
	var rpcErr *rpc.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, rpc.CodeUnsupportedMethod, rpcErr.Code)
}

func TestConcurrentEventsAllApplied(t *testing.T) {
	s := newTestSession(t)
	agent := connect(t, s)

	versions := make(chan uint64, 64)
	unsubscribe := s.Store().Subscribe(func(snap session.Snapshot) { versions <- snap.Version })
	defer unsubscribe()

	const n = 20
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := fmt.Sprintf(`{"appointment_id":"%d","user_name":"U","date":"2026-01-21","time":"10:00","display":"d"}`, i)
			resp, err := agent.Perform(context.Background(), event.MethodAppointmentBooked, payload)
			assert.NoError(t, err)
			assert.JSONEq(t, successAck, resp)
		}()
	}
	wg.Wait()

	assert.Len(t, s.Store().State().Appointments, n)

	var last uint64
	for range n {
		v := <-versions
		assert.Greater(t, v, last, "snapshots observed in commit order")
		last = v
	}
}

func TestInvokeTracksToolCall(t *testing.T) {
	s := newTestSession(t)
	agent := connect(t, s)
	agent.RegisterRPCMethod(MethodEndConversation, func(context.Context, string) (string, error) {
		return successAck, nil
	})
	agent.RegisterRPCMethod("lookup", func(context.Context, string) (string, error) {
		return "", errors.New("no such user")
	})

	require.NoError(t, s.EndConversation(context.Background()))
	_, err := s.Invoke(context.Background(), "lookup", "{}")
	require.Error(t, err)

	calls := s.Store().State().ToolCalls
	require.Len(t, calls, 2)
	assert.Equal(t, MethodEndConversation, calls[0].Name)
	assert.Equal(t, session.Completed, calls[0].Status)
	assert.Equal(t, successAck, *calls[0].Result)
	assert.Equal(t, t0, calls[0].Timestamp)

	assert.Equal(t, "lookup", calls[1].Name)
	assert.Equal(t, session.Errored, calls[1].Status)
	assert.Contains(t, *calls[1].Error, "no such user")

	assert.Len(t, s.Refresher().Visible(), 2)
}

func TestInvokeWithoutConnection(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Invoke(context.Background(), "lookup", "{}")
	assert.ErrorIs(t, err, transport.ErrTransportUnavailable)
	assert.Empty(t, s.Store().State().ToolCalls)
}
