package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrSyntax wraps every SET modifier error.
	ErrSyntax = errors.New("syntax error")
	// ErrInvalidExpire is returned when an expiry cannot be represented.
	ErrInvalidExpire = errors.New("invalid expire time in 'SET' command")
)

// SetOptions is the validated modifier tail of a SET command.
type SetOptions struct {
	// ExpireAt is the absolute expiry in unix milliseconds, valid when
	// HasExpire is set.
	ExpireAt  int64
	HasExpire bool
	// NX: only set if the key is absent.
	NX bool
	// XX: only set if the key is present.
	XX bool
}

// ParseSetOptions validates the arguments following "SET key value".
// Modifiers are case-insensitive and may come in any order. Relative
// expiries are resolved against nowMillis (unix milliseconds), so the
// result carries a single absolute instant whatever modifier produced it.
func ParseSetOptions(args []string, nowMillis int64) (SetOptions, error) {
	var opts SetOptions
	var expiryMod, condMod string

	for i := 0; i < len(args); i++ {
		mod := strings.ToUpper(args[i])
		switch mod {
		case "NX", "XX":
			if condMod != "" {
				return SetOptions{}, fmt.Errorf("%w: '%s' conflicts with '%s'", ErrSyntax, mod, condMod)
			}
			condMod = mod
			opts.NX = mod == "NX"
			opts.XX = mod == "XX"

		case "EX", "PX", "EXAT", "PXAT":
			if expiryMod != "" {
				return SetOptions{}, fmt.Errorf("%w: '%s' conflicts with '%s'", ErrSyntax, mod, expiryMod)
			}
			if i+1 >= len(args) {
				return SetOptions{}, fmt.Errorf("%w: '%s' requires a value", ErrSyntax, mod)
			}
			n, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				return SetOptions{}, fmt.Errorf("%w: value for '%s' is not an integer", ErrSyntax, mod)
			}
			at, err := absoluteExpiry(mod, n, nowMillis)
			if err != nil {
				return SetOptions{}, err
			}
			expiryMod = mod
			opts.ExpireAt = at
			opts.HasExpire = true
			i++

		default:
			return SetOptions{}, fmt.Errorf("%w: unknown option '%s'", ErrSyntax, args[i])
		}
	}

	return opts, nil
}

// absoluteExpiry converts a modifier value to unix milliseconds.
func absoluteExpiry(mod string, n, nowMillis int64) (int64, error) {
	switch mod {
	case "EX":
		ms, ok := mulMillis(n)
		if !ok {
			return 0, ErrInvalidExpire
		}
		return addMillis(nowMillis, ms)
	case "PX":
		return addMillis(nowMillis, n)
	case "EXAT":
		ms, ok := mulMillis(n)
		if !ok {
			return 0, ErrInvalidExpire
		}
		return ms, nil
	default:
		return n, nil
	}
}

func mulMillis(seconds int64) (int64, bool) {
	if seconds > math.MaxInt64/1000 || seconds < math.MinInt64/1000 {
		return 0, false
	}
	return seconds * 1000, true
}

func addMillis(now, delta int64) (int64, error) {
	if (delta > 0 && now > math.MaxInt64-delta) || (delta < 0 && now < math.MinInt64-delta) {
		return 0, ErrInvalidExpire
	}
	return now + delta, nil
}
