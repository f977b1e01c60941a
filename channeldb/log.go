package channeldb

import (
	"github.com/btcsuite/btclog"
	"github.com/lnchan/lnnode/build"
)

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("CHDB", nil))
}

// UseLogger sets the package-wide logger used by channeldb.
func UseLogger(logger btclog.Logger) {
	log = logger
}
