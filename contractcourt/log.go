package contractcourt

import (
	"github.com/btcsuite/btclog"
	"github.com/lnchan/lnnode/build"
)

var log btclog.Logger

func init() {
	UseLogger(build.NewSubLogger("CNTR", nil))
}

// UseLogger sets the package-wide logger used by contractcourt.
func UseLogger(logger btclog.Logger) {
	log = logger
}
