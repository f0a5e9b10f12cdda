// Package command maps parsed requests to keyspace operations and builds
// their replies.
package command

import (
	"errors"
	"strings"

	"github.com/velocitykv/velocity/internal/protocol"
	"github.com/velocitykv/velocity/internal/store"
)

const wrongTypeMessage = "WRONGTYPE Operation against a key holding the wrong kind of value"

type handlerFunc func(d *Dispatcher, args []string) protocol.Value

type command struct {
	name    string
	handler handlerFunc
	// arity counts the command name. A negative arity -N means at least N.
	arity int
}

var commandTable = make(map[string]*command)

func register(name string, handler handlerFunc, arity int) {
	commandTable[name] = &command{name: name, handler: handler, arity: arity}
}

func (c *command) acceptsArgc(argc int) bool {
	if c.arity >= 0 {
		return argc == c.arity
	}
	return argc >= -c.arity
}

// Known reports whether name (any case) is a supported command.
func Known(name string) bool {
	_, ok := commandTable[strings.ToUpper(name)]
	return ok
}

// Dispatcher executes requests against a Store.
// It is safe for concurrent use; all shared state lives in the Store.
type Dispatcher struct {
	store *store.Store
	match store.Matcher
}

// New creates a Dispatcher. match is the glob predicate used by KEYS.
func New(s *store.Store, match store.Matcher) *Dispatcher {
	return &Dispatcher{store: s, match: match}
}

// Dispatch executes one request and returns its reply. Every failure is
// reported as an error reply; Dispatch itself never fails.
func (d *Dispatcher) Dispatch(req protocol.Request) protocol.Value {
	name := strings.ToUpper(req.Name())
	cmd, ok := commandTable[name]
	if !ok {
		return protocol.Errorf("unknown command '%s'", req.Name())
	}
	if !cmd.acceptsArgc(len(req.Argv)) {
		return wrongArgs(cmd.name)
	}
	return cmd.handler(d, req.Args())
}

func wrongArgs(name string) protocol.Value {
	return protocol.Errorf("wrong number of arguments for '%s' command", name)
}

func errorReply(err error) protocol.Value {
	if errors.Is(err, store.ErrWrongType) {
		return protocol.Error(wrongTypeMessage)
	}
	return protocol.Error("ERR " + err.Error())
}
