package cli

import "errors"

var errPurgeNotConfirmed = errors.New("purge not confirmed")
