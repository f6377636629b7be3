package util

import (
	"os"
	"runtime/pprof"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/shopmonkeyus/go-common/logger"
)

// frames popped from the stack: panicError, RecoverPanic and panic.
const panicDepth = 3

// RecoverPanic logs a panic with the current goroutines and exits. Defer it at the top of main.
func RecoverPanic(logger logger.Logger) {
	if r := recover(); r != nil {
		err := panicError(panicDepth, r)
		var str strings.Builder
		pprof.Lookup("goroutine").WriteTo(&str, 2)
		logger.Error("a panic has occurred: %s\ncurrent goroutines:\n\n%s", err, str.String())
		os.Exit(2)
	}
}

func panicError(depth int, r any) error {
	if err, ok := r.(error); ok {
		return errors.WithStackDepth(err, depth+1)
	}
	return errors.NewWithDepthf(depth+1, "panic: %v", r)
}
