package command

import "github.com/velocitykv/velocity/internal/protocol"

func init() {
	register("DEL", (*Dispatcher).cmdDel, -2)
	register("EXISTS", (*Dispatcher).cmdExists, -2)
	register("KEYS", (*Dispatcher).cmdKeys, 2)
	register("TTL", (*Dispatcher).cmdTTL, 2)
	register("PTTL", (*Dispatcher).cmdPTTL, 2)
	register("TYPE", (*Dispatcher).cmdType, 2)
	register("DBSIZE", (*Dispatcher).cmdDBSize, 1)
}

func (d *Dispatcher) cmdDel(args []string) protocol.Value {
	var count int64
	for _, key := range args {
		if d.store.Delete(key) {
			count++
		}
	}
	return protocol.Integer(count)
}

func (d *Dispatcher) cmdExists(args []string) protocol.Value {
	return protocol.Integer(int64(d.store.Exists(args...)))
}

// cmdKeys rejects an empty pattern instead of treating it as "match all".
func (d *Dispatcher) cmdKeys(args []string) protocol.Value {
	pattern := args[0]
	if pattern == "" {
		return wrongArgs("KEYS")
	}
	return protocol.StringArray(d.store.Keys(pattern, d.match))
}

func (d *Dispatcher) cmdTTL(args []string) protocol.Value {
	ms := d.store.TTL(args[0])
	if ms < 0 {
		return protocol.Integer(ms)
	}
	return protocol.Integer((ms + 500) / 1000)
}

func (d *Dispatcher) cmdPTTL(args []string) protocol.Value {
	return protocol.Integer(d.store.TTL(args[0]))
}

func (d *Dispatcher) cmdType(args []string) protocol.Value {
	return protocol.SimpleString(d.store.TypeOf(args[0]))
}

func (d *Dispatcher) cmdDBSize(args []string) protocol.Value {
	return protocol.Integer(int64(d.store.Size()))
}
