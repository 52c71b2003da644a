package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTableCmd создаёт группу команд для таблиц.
func NewTableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Manage tables",
	}

	cmd.AddCommand(
		newTableAddCmd(clientFn, outputFn),
		newTableProfileCmd(clientFn, outputFn),
		newTableListCmd(clientFn, outputFn),
		newTablePreviewCmd(clientFn, outputFn),
	)

	return cmd
}

func newTableAddCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "add BUCKET PATH",
		Short: "Ingest and profile a single table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			sub, err := clientFn().AddTable(args[0], args[1])
			if err != nil {
				return err
			}
			if sub == nil {
				out.Success(fmt.Sprintf("Table already ingested: %s", args[1]))
				return nil
			}

			printSubmission(out, sub)
			return nil
		},
	}
}

func newTableProfileCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "profile BUCKET PATH",
		Short: "Profile an ingested table again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, err := clientFn().ProfileTable(args[0], args[1])
			if err != nil {
				return err
			}

			printSubmission(outputFn(), sub)
			return nil
		},
	}
}

func newTableListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var bucket string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := clientFn().ListTables(bucket)
			if err != nil {
				return err
			}

			headers := []string{"NAME", "BUCKET", "PATH", "COLUMNS", "NODES"}
			rows := make([][]string, len(units))
			for i, u := range units {
				rows[i] = []string{u.Name, u.Bucket, u.Path, strconv.Itoa(u.ColumnCount), strconv.Itoa(len(u.Nodes))}
			}

			outputFn().Print(headers, rows, units)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Filter by bucket")
	return cmd
}

func newTablePreviewCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "preview BUCKET PATH",
		Short: "Print the first rows of a table as CSV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := clientFn().PreviewTable(args[0], args[1], rows)
			if err != nil {
				return err
			}

			outputFn().Raw(data)
			return nil
		},
	}

	cmd.Flags().IntVar(&rows, "rows", 10, "Number of data rows")
	return cmd
}
