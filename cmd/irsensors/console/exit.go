package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func Exit(code int, msg string, args ...any) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

// Fail exits with code 1 printing err after the prefix.
func Fail(prefix string, err error) cli.ExitCoder {
	if prefix == "" {
		return cli.Exit(Red(err), 1)
	}
	return cli.Exit(fmt.Sprintf("%s: %s", prefix, Red(err)), 1)
}
