package main

import (
	"context"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"grid-executor/internal/client"
	"grid-executor/internal/config"
	"grid-executor/internal/logging"
	"grid-executor/internal/metrics"
	"grid-executor/internal/model"
	"grid-executor/internal/repository"
	"grid-executor/internal/service/trading"
)

var (
	configPath  string
	live        bool
	apiKey      string
	apiSecret   string
	metricsAddr string
)

func main() {
	app := cli.NewApp()
	app.Name = "grid-executor"
	app.Usage = "simulated and live order execution for USDⓈ-M futures grids"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "path to the YAML configuration",
			Destination: &configPath,
			EnvVar:      "GRID_CONFIG",
		},
		cli.BoolFlag{
			Name:        "live",
			Usage:       "send signed orders to the exchange instead of simulating them",
			Destination: &live,
		},
		cli.StringFlag{
			Name:        "api-key",
			Usage:       "exchange API key",
			Destination: &apiKey,
			EnvVar:      config.EnvAPIKey,
		},
		cli.StringFlag{
			Name:        "secret",
			Usage:       "exchange API secret",
			Destination: &apiSecret,
			EnvVar:      config.EnvAPISecret,
		},
		cli.StringFlag{
			Name:        "metrics-addr",
			Usage:       "serve prometheus metrics on this address, e.g. :9102",
			Destination: &metricsAddr,
		},
	}

	app.Commands = []cli.Command{
		orderCommand(),
		gridCommand(),
		cancelCommand(),
		watchCommand(),
		journalCommand(),
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Ошибка: %v", err)
	}
}

// runtime is everything a command needs, built once from config and flags.
type runtime struct {
	cfg      *config.Config
	rules    *model.RuleBook
	api      *client.Binance
	executor *trading.Executor
	mode     model.Mode
	journal  repository.EventRepository

	closers []io.Closer
}

func setup() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		cfg.Credentials.APIKey = apiKey
	}
	if apiSecret != "" {
		cfg.Credentials.Secret = apiSecret
	}
	if live {
		cfg.Mode = "live"
	}

	rt := &runtime{cfg: cfg}
	logCloser, err := logging.Setup(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, logCloser)

	if cfg.Journal.Driver != "" {
		db, err := repository.Open(cfg.Journal.Driver, cfg.Journal.DSN)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.closers = append(rt.closers, db)
		rt.journal = repository.NewEventRepository(db, cfg.Journal.Driver)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = rt.journal.Migrate(ctx)
		cancel()
		if err != nil {
			rt.Close()
			return nil, err
		}
		log.AddHook(logging.NewJournalHook(rt.journal))
	}

	if rt.rules, err = cfg.RuleBook(); err != nil {
		rt.Close()
		return nil, err
	}

	rt.api = client.NewBinance(cfg.Exchange.RestURL, cfg.Exchange.APIPrefix, client.WithRecvWindow(cfg.Exchange.RecvWindowMS))
	rt.executor = trading.NewExecutor(rt.api, trading.SimulationConfig{
		Delay:       cfg.Simulation.Delay,
		FailureRate: cfg.Simulation.FailureRate,
	})

	if cfg.Mode == "live" {
		rt.mode = model.Live{Credentials: &cfg.Credentials}
	} else {
		rt.mode = model.Simulated{}
	}

	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(metricsAddr); err != nil {
				log.WithError(err).Error("[Метрики] сервер остановлен")
			}
		}()
	}

	log.WithFields(log.Fields{
		"mode":        rt.mode.Name(),
		"rest":        cfg.Exchange.RestURL,
		"credentials": cfg.Credentials.Complete(),
	}).Info("Исполнитель готов")
	return rt, nil
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i].Close()
	}
	rt.closers = nil
}

// withRuntime wraps a command action with setup and teardown.
func withRuntime(action func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := setup()
		if err != nil {
			return cli.NewExitError(err.Error(), 2)
		}
		defer rt.Close()
		if err := action(c, rt); err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		return nil
	}
}
