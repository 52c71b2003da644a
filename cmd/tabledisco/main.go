// tabledisco CLI — инструмент командной строки для приёмки
// и профилирования таблиц через HTTP API.
//
// Использование:
//
//	tabledisco [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	bucket  Приёмка бакетов
//	table   Таблицы каталога
//	job     Статус отправок
//	purge   Очистка каталога и деревьев
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/tabledisco/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("TABLEDISCO_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd := &cobra.Command{
		Use:           "tabledisco",
		Short:         "tabledisco CLI — table ingestion and profiling",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewBucketCmd(clientFn, outputFn),
		cli.NewTableCmd(clientFn, outputFn),
		cli.NewJobCmd(clientFn, outputFn),
		cli.NewPurgeCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
