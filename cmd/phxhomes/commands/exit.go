package commands

import (
	"errors"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/pipeline"
	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitCorruptState   = 2
	ExitSourcesBlocked = 3
)

// ExitCode maps an error to the documented process exit code: 2 for
// unrecoverable state corruption, 3 when every listing source is
// circuit-blocked, 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var corrupt *state.CorruptStateError
	if errors.As(err, &corrupt) {
		return ExitCorruptState
	}

	if errors.Is(err, pipeline.ErrSourcesBlocked) {
		return ExitSourcesBlocked
	}

	return ExitFailure
}
