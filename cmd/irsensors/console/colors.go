package console

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed).SprintFunc()
	Green  = color.New(color.FgGreen).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
)

// Addr renders a 7-bit bus address.
func Addr(a byte) string {
	return Green(fmt.Sprintf("%#02x", a))
}
