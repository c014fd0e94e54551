package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jordy-godjo/pfdb/internal/pferr"
)

func newScanCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <path>",
		Short: "walk every live record in the file in page-then-slot order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rm, handle, err := openManagers(flags, args[0])
			if err != nil {
				return errors.Wrap(err, "open file")
			}

			sh := rm.OpenScan(handle)
			logrus.WithField("scanID", sh.ID).Debug("opened scan")

			buf := make([]byte, flags.pageSize)
			count := 0
			for {
				rid, n, err := rm.GetNextRecord(sh, buf)
				if err != nil {
					if !pferr.Is(err, pferr.EOF) {
						return errors.Wrap(err, "scan")
					}
					break
				}
				fmt.Printf("(%d,%d): %q\n", rid.PageNo, rid.SlotNo, buf[:n])
				count++
			}
			if err := rm.CloseScan(sh); err != nil {
				return errors.Wrap(err, "close scan")
			}

			logrus.WithFields(logrus.Fields{
				"path":  args[0],
				"count": count,
			}).Info("scan complete")

			return errors.Wrap(rm.CloseFile(handle), "close file")
		},
	}
}
