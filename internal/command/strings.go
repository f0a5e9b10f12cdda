package command

import (
	"math"
	"strconv"

	"github.com/velocitykv/velocity/internal/protocol"
	"github.com/velocitykv/velocity/internal/store"
)

func init() {
	register("GET", (*Dispatcher).cmdGet, 2)
	register("SET", (*Dispatcher).cmdSet, -3)
	register("INCR", (*Dispatcher).cmdIncr, 2)
	register("DECR", (*Dispatcher).cmdDecr, 2)
	register("INCRBY", (*Dispatcher).cmdIncrBy, 3)
	register("DECRBY", (*Dispatcher).cmdDecrBy, 3)
}

func (d *Dispatcher) cmdGet(args []string) protocol.Value {
	v, ok := d.store.Get(args[0])
	if !ok {
		return protocol.Null()
	}
	str, ok := v.(store.String)
	if !ok {
		return protocol.Error(wrongTypeMessage)
	}
	return protocol.BulkString(string(str))
}

func (d *Dispatcher) cmdSet(args []string) protocol.Value {
	key, value := args[0], args[1]

	opts, err := ParseSetOptions(args[2:], d.store.Now())
	if err != nil {
		return errorReply(err)
	}

	setArgs := store.SetArgs{ExpireAt: opts.ExpireAt, HasExpire: opts.HasExpire}
	switch {
	case opts.NX:
		setArgs.Condition = store.IfAbsent
	case opts.XX:
		setArgs.Condition = store.IfPresent
	}

	if !d.store.Set(key, store.String(value), setArgs) {
		return protocol.Null()
	}
	return protocol.OK()
}

func (d *Dispatcher) incrBy(key string, delta int64) protocol.Value {
	n, err := d.store.IncrBy(key, delta)
	if err != nil {
		return errorReply(err)
	}
	return protocol.Integer(n)
}

func (d *Dispatcher) cmdIncr(args []string) protocol.Value {
	return d.incrBy(args[0], 1)
}

func (d *Dispatcher) cmdDecr(args []string) protocol.Value {
	return d.incrBy(args[0], -1)
}

func (d *Dispatcher) cmdIncrBy(args []string) protocol.Value {
	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return errorReply(store.ErrNotInteger)
	}
	return d.incrBy(args[0], delta)
}

func (d *Dispatcher) cmdDecrBy(args []string) protocol.Value {
	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return errorReply(store.ErrNotInteger)
	}
	if delta == math.MinInt64 {
		return errorReply(store.ErrOverflow)
	}
	return d.incrBy(args[0], -delta)
}
