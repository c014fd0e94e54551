package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jordy-godjo/pfdb/internal/pagedfile"
	"github.com/jordy-godjo/pfdb/internal/pfconfig"
	"github.com/jordy-godjo/pfdb/internal/recordmgr"
)

// rootFlags holds the persistent flags every subcommand reads to build
// its own short-lived Manager pair: pfdb has no long-running daemon, so
// each command opens the file it needs and closes it before returning.
type rootFlags struct {
	pageSize       int
	bufferCapacity int
	policy         string
	debug          bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "pfdb",
		Short: "paged-file and record-manager command-line driver",
		Long:  "pfdb drives the PagedFile/RecordManager storage primitives directly, one subcommand per operation.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	cmd.PersistentFlags().IntVar(&flags.pageSize, "page-size", pfconfig.PageSize, "page payload size in bytes")
	cmd.PersistentFlags().IntVar(&flags.bufferCapacity, "buffer-capacity", 32, "buffer pool frame capacity")
	cmd.PersistentFlags().StringVar(&flags.policy, "policy", string(pfconfig.LRU), "replacement policy: LRU or MRU")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newCreateFileCmd(flags),
		newOpenFileCmd(flags),
		newInsertRecordCmd(flags),
		newAllocPageCmd(flags),
		newScanCmd(flags),
		newStatsCmd(flags),
	)
	return cmd
}

func (f *rootFlags) config() *pfconfig.Config {
	cfg := pfconfig.Default(f.bufferCapacity)
	cfg.PageSize = f.pageSize
	return cfg
}

func (f *rootFlags) policyValue() pfconfig.Policy {
	return pfconfig.Policy(f.policy)
}

// zapLogger builds the library-facing structured logger; pfdb's own
// command-dispatch messages go through logrus instead (see main.go and
// each subcommand), matching the teacher's separation between component
// logging and REPL-facing output.
func zapLogger(debug bool) *zap.SugaredLogger {
	if !debug {
		return zap.NewNop().Sugar()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// openManagers builds a PagedFile/RecordManager pair over name, already
// opened under the configured policy. Callers must CloseFile(handle).
func openManagers(f *rootFlags, name string) (*pagedfile.Manager, *recordmgr.Manager, int, error) {
	pf := pagedfile.New(f.config(), zapLogger(f.debug))
	rm := recordmgr.New(pf, zapLogger(f.debug))
	handle, err := rm.OpenFile(name, f.policyValue())
	if err != nil {
		return nil, nil, 0, err
	}
	return pf, rm, handle, nil
}
