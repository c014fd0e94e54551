package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jordy-godjo/pfdb/internal/pagedfile"
)

func newCreateFileCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create-file <path>",
		Short: "create a new, empty paged file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf := pagedfile.New(flags.config(), zapLogger(flags.debug))
			if err := pf.CreateFile(args[0]); err != nil {
				return errors.Wrap(err, "create file")
			}
			logrus.WithField("path", args[0]).Info("created paged file")
			return nil
		},
	}
}
