package cli

import (
	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для отправок.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect submitted work",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status ID",
		Short: "Show the status tree of a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := clientFn().JobStatus(args[0])
			if err != nil {
				return err
			}

			outputFn().Tree(node)
			return nil
		},
	})

	return cmd
}

// NewPurgeCmd создаёт команду purge.
func NewPurgeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored topology and all table metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			if !yes {
				out.Error("purge removes all metadata, pass --yes to confirm")
				return errPurgeNotConfirmed
			}

			if err := clientFn().Purge(); err != nil {
				return err
			}
			out.Success("Purged")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm purge")
	return cmd
}
