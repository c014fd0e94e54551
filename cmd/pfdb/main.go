// Command pfdb is a thin CLI driver over the PagedFile/RecordManager
// primitives: one Cobra subcommand per storage operation. It is a
// diagnostic and demonstration surface, not a query engine.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("pfdb command failed")
		os.Exit(1)
	}
}
