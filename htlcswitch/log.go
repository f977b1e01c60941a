package htlcswitch

import (
	"github.com/btcsuite/btclog"
	"github.com/lnchan/lnnode/build"
)

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("HSWC", nil))
}

// UseLogger sets the package-wide logger used by htlcswitch.
func UseLogger(logger btclog.Logger) {
	log = logger
}
