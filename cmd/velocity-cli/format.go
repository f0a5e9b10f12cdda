package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/velocitykv/velocity/internal/protocol"
)

// formatReply renders a reply the way redis-cli does, one value per line.
func formatReply(v protocol.Value, indent string) string {
	switch v.Type {
	case protocol.TypeSimpleString:
		return v.Str + "\n"
	case protocol.TypeError:
		return "(error) " + v.Str + "\n"
	case protocol.TypeInteger:
		return fmt.Sprintf("(integer) %d\n", v.Num)
	case protocol.TypeBulkString:
		if v.Null {
			return "(nil)\n"
		}
		return strconv.Quote(v.Str) + "\n"
	case protocol.TypeArray:
		if v.Null {
			return "(nil)\n"
		}
		if len(v.Array) == 0 {
			return "(empty array)\n"
		}
		var b strings.Builder
		width := len(strconv.Itoa(len(v.Array)))
		for i, item := range v.Array {
			if i > 0 {
				b.WriteString(indent)
			}
			label := fmt.Sprintf("%*d) ", width, i+1)
			b.WriteString(label)
			b.WriteString(formatReply(item, indent+strings.Repeat(" ", len(label))))
		}
		return b.String()
	default:
		return fmt.Sprintf("(unknown reply type %q)\n", v.Type)
	}
}
