package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newAllocPageCmd(flags *rootFlags) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "alloc-page <path>",
		Short: "allocate one or more fresh pages, reusing the free list first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, _, handle, err := openManagers(flags, args[0])
			if err != nil {
				return errors.Wrap(err, "open file")
			}

			pages := make([]int32, 0, count)
			for i := 0; i < count; i++ {
				pageNo, _, err := pf.AllocPage(handle)
				if err != nil {
					return errors.Wrap(err, "alloc page")
				}
				pages = append(pages, pageNo)
				if err := pf.UnfixPage(handle, pageNo, true); err != nil {
					return errors.Wrap(err, "unfix page")
				}
			}

			logrus.WithFields(logrus.Fields{
				"path":  args[0],
				"pages": pages,
			}).Info("allocated pages")

			return errors.Wrap(pf.CloseFile(handle), "close file")
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of pages to allocate")
	return cmd
}
