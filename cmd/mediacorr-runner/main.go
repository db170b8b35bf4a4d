// mediacorr-runner — последовательный запуск пайплайна MediaCorr
// (sources → ingestor → filter → classifier → correlator) как Kubernetes Jobs.
//
// Использование:
//
//	mediacorr-runner [--config FILE] [--json] <command> [flags]
//
// Команды:
//
//	run       Однократный запуск пайплайна
//	status    Состояние Jobs в кластере
//	render    Вывод манифестов Jobs
//	validate  Проверка пайплайна и манифестов
//	history   Записанные runs (PostgreSQL)
//	request   Запрос на запуск для serve (RabbitMQ)
//	serve     Cron, очередь запросов, /healthz и /metrics
//
// Коды завершения: 0 успех, 1 ошибка, 2 отправка job, 3 job завершился
// неудачно, 4 таймаут ожидания, 130 прерывание.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/mediacorr/internal/cli"
	"github.com/shaiso/mediacorr/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// graceful shutdown: отмена ctx прерывает ожидание текущего job
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := telemetry.SetupLogger()

	var configPath string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "mediacorr-runner",
		Short:         "Run the MediaCorr pipeline as Kubernetes Jobs, one job at a time",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: mediacorr.yaml in ., ./config, ~/.mediacorr)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	var env *cli.Env
	envFn := func() (*cli.Env, error) {
		if env != nil {
			return env, nil
		}
		e, err := cli.LoadEnv(configPath, logger)
		if err != nil {
			return nil, err
		}
		env = e
		return env, nil
	}
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(envFn, outputFn),
		cli.NewStatusCmd(envFn, outputFn),
		cli.NewRenderCmd(envFn, outputFn),
		cli.NewValidateCmd(envFn, outputFn),
		cli.NewHistoryCmd(envFn, outputFn),
		cli.NewRequestCmd(envFn, outputFn),
		cli.NewServeCmd(envFn),
	)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}
