// Cascade CLI — инструмент командной строки для запуска jobs
// и отслеживания их статуса через HTTP API.
//
// Использование:
//
//	cascade [--api-url URL] [--json] job <subcommand> [flags]
//
// Команды:
//
//	job submit USERNAME         Запустить новый job
//	job status USERNAME JOB_ID  Показать статус job
//	job list USERNAME           Список jobs пользователя
//	job watch USERNAME JOB_ID   Ждать терминального статуса
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ryabinin/cascade/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "cascade",
		Short:         "Cascade CLI — batch workflow tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewJobCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
