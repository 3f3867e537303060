package cli

import (
	"reflect"

	"github.com/alecthomas/kong"

	"github.com/frobware/go-nsprov"
)

// connModeMapper creates a Kong mapper for nsprov.ConnMode.
func connModeMapper() kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto("mode", &s); err != nil {
			return err
		}
		mode, err := ParseConnMode(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(mode))
		return nil
	}
}

// ParseConnMode parses a --mode argument.
func ParseConnMode(s string) (nsprov.ConnMode, error) {
	mode, ok := nsprov.ParseConnMode(s)
	if !ok {
		return "", nsprov.ErrInvalidFormat{What: "connection mode (want veth or macvlan)", Value: s}
	}
	return mode, nil
}
