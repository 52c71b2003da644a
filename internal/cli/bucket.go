package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewBucketCmd создаёт группу команд для бакетов.
func NewBucketCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "Manage buckets",
	}

	cmd.AddCommand(newBucketIngestCmd(clientFn, outputFn))
	return cmd
}

func newBucketIngestCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest BUCKET",
		Short: "Ingest every new table in a bucket, then profile the bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			sub, err := clientFn().IngestBucket(args[0])
			if err != nil {
				return err
			}
			if sub == nil {
				out.Success(fmt.Sprintf("Nothing to ingest in %s", args[0]))
				return nil
			}

			printSubmission(out, sub)
			return nil
		},
	}
}

func printSubmission(out *Output, sub *SubmissionResponse) {
	out.Success(fmt.Sprintf("Submitted: %s", sub.ID))
	out.Print(
		[]string{"TASK_ID", "TYPE"},
		[][]string{{sub.ID, sub.Type}},
		sub,
	)
}
