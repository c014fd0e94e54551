package main

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jordy-godjo/pfdb/internal/recordmgr"
)

func newInsertRecordCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "insert-record <path> <data>",
		Short: "insert one record and print its record identifier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, data := args[0], args[1]

			_, rm, handle, err := openManagers(flags, path)
			if err != nil {
				return errors.Wrap(err, "open file")
			}

			rid, err := rm.InsertRecord(handle, []byte(data))
			if err != nil {
				return errors.Wrap(err, "insert record")
			}

			logrus.WithFields(logrus.Fields{
				"path":   path,
				"page":   rid.PageNo,
				"slot":   rid.SlotNo,
				"packed": recordmgr.Pack(rid),
			}).Info("inserted record")

			if err := rm.CloseFile(handle); err != nil {
				return errors.Wrap(err, "close file")
			}
			return nil
		},
	}
}
