package command

import "github.com/velocitykv/velocity/internal/protocol"

func init() {
	register("PING", (*Dispatcher).cmdPing, -1)
	register("ECHO", (*Dispatcher).cmdEcho, 2)
	register("COMMAND", (*Dispatcher).cmdCommand, -1)
}

func (d *Dispatcher) cmdPing(args []string) protocol.Value {
	if len(args) > 1 {
		return wrongArgs("PING")
	}
	if len(args) == 1 {
		return protocol.BulkString(args[0])
	}
	return protocol.SimpleString("PONG")
}

func (d *Dispatcher) cmdEcho(args []string) protocol.Value {
	return protocol.BulkString(args[0])
}

// cmdCommand returns an empty command table, enough for clients that probe
// COMMAND on connect.
func (d *Dispatcher) cmdCommand(args []string) protocol.Value {
	return protocol.Array()
}
