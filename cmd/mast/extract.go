package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/CoreyMoen/mast-sanity-sub000/internal/extract"
	"github.com/CoreyMoen/mast-sanity-sub000/internal/logging"
)

func extractCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Print the actions parsed from a reply without executing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Reply text file, - for stdin")
	return cmd
}

func runExtract(cmd *cobra.Command, file string) error {
	reply, err := readReply(file)
	if err != nil {
		return err
	}

	log, err := logging.New(logLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	actions := extract.New(log).Extract(reply)
	out, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(out))
	return nil
}
