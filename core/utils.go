package core

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
)

// NewLogger returns a logger whose messages are prefixed with a colored tag.
//
//	2024/06/30 00:56:06 [sim] (driver) message
func NewLogger(prefix string, prefix2 string) *log.Logger {
	prefixFull := color.HiGreenString(fmt.Sprintf("[%s] ", prefix))
	if prefix2 != "" {
		prefixFull += color.HiYellowString(fmt.Sprintf("(%s) ", prefix2))
	}
	return log.New(os.Stdout, prefixFull, log.Ldate|log.Ltime|log.Lmsgprefix)
}
