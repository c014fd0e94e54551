package main

import (
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jordy-godjo/pfdb/internal/pferr"
)

func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <path>",
		Short: "walk every page of the file and report buffer-pool I/O counters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, _, handle, err := openManagers(flags, args[0])
			if err != nil {
				return errors.Wrap(err, "open file")
			}
			pf.ResetStats()

			pageNo, _, err := pf.GetFirstPage(handle)
			for err == nil {
				if uerr := pf.UnfixPage(handle, pageNo, false); uerr != nil {
					return errors.Wrap(uerr, "unfix page")
				}
				pageNo, _, err = pf.GetNextPage(handle, pageNo)
			}
			if !pferr.Is(err, pferr.EOF) {
				return errors.Wrap(err, "scan pages")
			}

			s := pf.Stats()
			if err := pf.CloseFile(handle); err != nil {
				return errors.Wrap(err, "close file")
			}

			w := tablewriter.NewWriter(os.Stdout)
			w.SetHeader([]string{"logical io", "physical io", "disk reads", "disk writes"})
			w.Append([]string{
				strconv.FormatInt(s.LogicalIO, 10),
				strconv.FormatInt(s.PhysicalIO, 10),
				strconv.FormatInt(s.DiskReads, 10),
				strconv.FormatInt(s.DiskWrites, 10),
			})
			w.Render()
			return nil
		},
	}
}
