package commands

import (
	"errors"

	"github.com/openfroyo/confpatch/pkg/blockpatch"
)

// ErrChangesPending is returned by check when the file needs patching.
var ErrChangesPending = errors.New("changes pending")

// Process exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitNotFound   = 2
	ExitStructural = 3
	ExitIO         = 4
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch blockpatch.KindOf(err) {
	case blockpatch.KindNotFound:
		return ExitNotFound
	case blockpatch.KindStructural, blockpatch.KindMalformedNesting:
		return ExitStructural
	case blockpatch.KindIO:
		return ExitIO
	default:
		return ExitFailure
	}
}
