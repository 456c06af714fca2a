package transport

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/appointment-assistant/sessionsync/internal/event"
	"github.com/appointment-assistant/sessionsync/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	handlers map[string]rpc.Handler
	regs     int
	unregs   int
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: make(map[string]rpc.Handler)}
}

func (f *fakeConn) RegisterRPCMethod(method string, h rpc.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = h
	f.regs++
}

func (f *fakeConn) UnregisterRPCMethod(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, method)
	f.unregs++
}

func (f *fakeConn) call(t *testing.T, method, payload string) string {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[method]
	f.mu.Unlock()
	require.True(t, ok, "no handler for %s", method)
	resp, err := h(context.Background(), payload)
	require.NoError(t, err, "handlers answer with an envelope, never an error")
	return resp
}

func TestRegisterBindsAllMethods(t *testing.T) {
	conn := newFakeConn()
	require.NoError(t, Register(conn, Table{}))

	assert.Len(t, conn.handlers, len(event.Methods))
	for _, m := range event.Methods {
		assert.JSONEq(t, `{"status":"error","message":"no handler for `+m+`"}`, conn.call(t, m, "{}"))
	}
}

func TestRegisterNilConnection(t *testing.T) {
	err := Register(nil, Table{})
	assert.ErrorIs(t, err, ErrTransportUnavailable)

	b, err := Bind(nil, Table{})
	assert.Nil(t, b)
	assert.ErrorIs(t, err, ErrTransportUnavailable)
}

func TestReRegisterDoesNotDoubleFire(t *testing.T) {
	conn := newFakeConn()
	var calls int
	table := Table{event.MethodAppointmentBooked: func(context.Context, string) (string, error) {
		calls++
		return Success(), nil
	}}

	require.NoError(t, Register(conn, table))
	require.NoError(t, Register(conn, table))

	conn.call(t, event.MethodAppointmentBooked, "{}")
	assert.Equal(t, 1, calls)
	assert.Len(t, conn.handlers, len(event.Methods))
}

func TestUnregisterWithoutRegistrationIsSafe(t *testing.T) {
	conn := newFakeConn()
	Unregister(conn)
	Unregister(nil)
	assert.Empty(t, conn.handlers)
	assert.Equal(t, len(event.Methods), conn.unregs)
}

func TestCallbackErrorBecomesFailureEnvelope(t *testing.T) {
	conn := newFakeConn()
	require.NoError(t, Register(conn, Table{
		event.MethodAppointmentCancelled: func(context.Context, string) (string, error) {
			return "", errors.New("session closed")
		},
	}))

	resp := conn.call(t, event.MethodAppointmentCancelled, "{}")
	assert.JSONEq(t, `{"status":"error","message":"session closed"}`, resp)
}

func TestCallbackPanicBecomesFailureEnvelope(t *testing.T) {
	conn := newFakeConn()
	require.NoError(t, Register(conn, Table{
		event.MethodConversationSummary: func(context.Context, string) (string, error) {
			panic("nil summary")
		},
	}))

	resp := conn.call(t, event.MethodConversationSummary, "{}")
	assert.JSONEq(t, `{"status":"error","message":"conversation_summary: nil summary"}`, resp)
}

func TestBindingReleaseIsIdempotent(t *testing.T) {
	conn := newFakeConn()
	b, err := Bind(conn, Table{})
	require.NoError(t, err)

	b.Release()
	b.Release()
	assert.Empty(t, conn.handlers)
	assert.Equal(t, len(event.Methods), conn.unregs)

	var nilBinding *Binding
	nilBinding.Release()
}

func TestAckEnvelopes(t *testing.T) {
	assert.JSONEq(t, `{"status":"success","success":true}`, Success())
	assert.JSONEq(t, `{"status":"error","message":"bad payload"}`, Failure("bad payload"))
}
