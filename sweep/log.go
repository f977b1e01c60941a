package sweep

import (
	"github.com/btcsuite/btclog"

	"github.com/lnchan/lnnode/build"
)

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("SWPR", nil))
}

// UseLogger sets the package-wide logger used by sweep.
func UseLogger(logger btclog.Logger) {
	log = logger
}
