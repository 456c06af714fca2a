// Package transport binds the frontend's RPC handlers to a connection. Every
// bound handler answers with an acknowledgement envelope, even when the
// callback fails or panics.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/appointment-assistant/sessionsync/internal/event"
	"github.com/appointment-assistant/sessionsync/internal/rpc"
)

// ErrTransportUnavailable is returned when there is no connection to bind to.
var ErrTransportUnavailable = errors.New("transport unavailable")

// Registrar is the part of a connection the adapter needs. *rpc.Peer
// implements it.
type Registrar interface {
	RegisterRPCMethod(method string, h rpc.Handler)
	UnregisterRPCMethod(method string)
}

// Callback processes one inbound payload and returns the response to send.
// A returned error is turned into a failure envelope.
type Callback func(ctx context.Context, payload string) (string, error)

// Table maps each inbound method to its callback.
type Table map[string]Callback

type ack struct {
	Status  string `json:"status"`
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success returns the acknowledgement for a handled event.
func Success() string {
	data, _ := json.Marshal(ack{Status: "success", Success: true})
	return string(data)
}

// Failure returns the acknowledgement for an event that was not applied.
func Failure(msg string) string {
	data, _ := json.Marshal(ack{Status: "error", Message: msg})
	return string(data)
}

// Register binds exactly one handler for each inbound method. Methods absent
// from table still get a handler, one that always answers a failure.
// Registering again replaces the previous handlers.
func Register(conn Registrar, table Table) error {
	if conn == nil {
		return ErrTransportUnavailable
	}
	for _, method := range event.Methods {
		conn.RegisterRPCMethod(method, wrap(method, table[method]))
	}
	return nil
}

// Unregister removes every inbound handler. It is safe to call when nothing
// is registered.
func Unregister(conn Registrar) {
	if conn == nil {
		return
	}
	for _, method := range event.Methods {
		conn.UnregisterRPCMethod(method)
	}
}

func wrap(method string, cb Callback) rpc.Handler {
	if cb == nil {
		return func(context.Context, string) (string, error) {
			return Failure(fmt.Sprintf("no handler for %s", method)), nil
		}
	}
	return func(ctx context.Context, payload string) (resp string, err error) {
		defer func() {
			if r := recover(); r != nil {
				resp, err = Failure(fmt.Sprintf("%s: %v", method, r)), nil
			}
		}()
		resp, cbErr := cb(ctx, payload)
		if cbErr != nil {
			return Failure(cbErr.Error()), nil
		}
		return resp, nil
	}
}

// Binding is a scoped registration. Release unregisters the handlers; it is
// idempotent and meant to be deferred.
type Binding struct {
	conn Registrar
	once sync.Once
}

// Bind registers table on conn and returns the binding to release.
func Bind(conn Registrar, table Table) (*Binding, error) {
	if err := Register(conn, table); err != nil {
		return nil, err
	}
	return &Binding{conn: conn}, nil
}

func (b *Binding) Release() {
	if b == nil {
		return
	}
	b.once.Do(func() { Unregister(b.conn) })
}
