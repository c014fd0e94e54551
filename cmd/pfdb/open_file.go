package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jordy-godjo/pfdb/internal/pagedfile"
	"github.com/jordy-godjo/pfdb/internal/pferr"
)

func newOpenFileCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "open-file <path>",
		Short: "open a paged file, report its handle and used-page count, and close it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf := pagedfile.New(flags.config(), zapLogger(flags.debug))
			handle, err := pf.OpenFile(args[0], flags.policyValue())
			if err != nil {
				return errors.Wrap(err, "open file")
			}

			used := 0
			pageNo, _, err := pf.GetFirstPage(handle)
			for err == nil {
				used++
				if uerr := pf.UnfixPage(handle, pageNo, false); uerr != nil {
					return errors.Wrap(uerr, "unfix page")
				}
				pageNo, _, err = pf.GetNextPage(handle, pageNo)
			}
			if !pferr.Is(err, pferr.EOF) {
				return errors.Wrap(err, "scan pages")
			}

			logrus.WithFields(logrus.Fields{
				"path":      args[0],
				"handle":    handle,
				"usedPages": used,
				"policy":    flags.policy,
			}).Info("opened paged file")

			if err := pf.CloseFile(handle); err != nil {
				return errors.Wrap(err, "close file")
			}
			return nil
		},
	}
}
