// Backbeat CLI — инструмент командной строки для операторов
// и разработчиков клиентов.
//
// Использование:
//
//	backbeat [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	user      Регистрация клиентов
//	workflow  Workflows, сигналы, дерево узлов
//	node      Узлы: статус, журнал, reset/retry/deactivate
package main

import (
	"fmt"
	"os"

	"github.com/groupon/backbeat-sub000/internal/cli"
	"github.com/spf13/cobra"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "backbeat",
		Short:         "Backbeat CLI: inspect and drive workflows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("BACKBEAT_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewUserCmd(clientFn, outputFn),
		cli.NewWorkflowCmd(clientFn, outputFn),
		cli.NewNodeCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
