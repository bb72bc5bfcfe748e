// Package main runs the configured sensors of a board, logging every reading and exporting
// metrics to a node exporter textfile.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	boardregister "github.com/Vuzi/raspi-sensors/components/board/register"
	"github.com/Vuzi/raspi-sensors/components/sensor"
	// registers all sensor models.
	_ "github.com/Vuzi/raspi-sensors/components/sensor/register"
	"github.com/Vuzi/raspi-sensors/config"
	"github.com/Vuzi/raspi-sensors/host"
	"github.com/Vuzi/raspi-sensors/logging"
	"github.com/Vuzi/raspi-sensors/metrics"
	"github.com/Vuzi/raspi-sensors/scheduler"
)

const (
	flagConfig      = "config"
	flagEnvFile     = "env-file"
	flagDebug       = "debug"
	flagLogFile     = "log-file"
	flagMetricsFile = "metrics-file"
	flagOnce        = "once"
	flagWatch       = "watch"
)

var logger = logging.NewLogger("sensord")

func main() {
	app := &cli.App{
		Name:  "sensord",
		Usage: "poll the sensors wired to this board",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     flagConfig,
				Aliases:  []string{"c"},
				Usage:    "path to the YAML sensor configuration",
				EnvVars:  []string{"SENSORD_CONFIG"},
				Required: true,
			},
			&cli.StringFlag{
				Name:  flagEnvFile,
				Usage: "dotenv file loaded before the configuration is read",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write logs to this file, rotated as it grows",
			},
			&cli.StringFlag{
				Name:  flagMetricsFile,
				Usage: "node exporter textfile to write metrics to; overrides metrics_file from the configuration",
			},
			&cli.BoolFlag{
				Name:  flagOnce,
				Usage: "read every sensor once, print the readings and exit",
			},
			&cli.BoolFlag{
				Name:  flagWatch,
				Usage: "restart polling with the new sensors whenever the configuration file changes",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func run(c *cli.Context) (err error) {
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
		logging.GlobalLogLevel.SetLevel(zap.DebugLevel)
	}
	if path := c.String(flagLogFile); path != "" {
		appender, closer := logging.NewFileAppender(path)
		logger.AddAppender(appender)
		defer func() {
			if cerr := closer.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}
	defer func() {
		//nolint:errcheck
		logger.Sync()
	}()

	if err := config.LoadEnv(c.String(flagEnvFile)); err != nil {
		return err
	}
	conf, err := config.Read(c.String(flagConfig))
	if err != nil {
		return errors.Wrap(err, "cannot read configuration")
	}
	metricsFile := conf.MetricsFile
	if c.IsSet(flagMetricsFile) {
		metricsFile = c.String(flagMetricsFile)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := boardregister.NewBoard(ctx, conf.Board, logger.Sublogger("board"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(context.Background()); cerr != nil {
			logger.Errorw("error closing board", "error", cerr)
		}
	}()

	sched := scheduler.New(clock.New(), logger.Sublogger("scheduler"))
	defer func() {
		if cerr := sched.Close(); cerr != nil {
			logger.Errorw("error closing scheduler", "error", cerr)
		}
	}()

	m := metrics.New()
	m.RegisterScheduler(sched)
	flushMetrics := func() {
		if metricsFile == "" {
			return
		}
		if err := m.WriteToTextfile(metricsFile); err != nil {
			logger.Warnw("cannot write metrics", "file", metricsFile, "error", err)
		}
	}

	h, err := host.New(b, sched, conf, m, logger.Sublogger("sensors"))
	if err != nil {
		return err
	}

	if c.Bool(flagOnce) {
		defer closeHost(h)
		outcomes, err := h.ReadAll(ctx)
		flushMetrics()
		printOutcomes(c.App.Writer, outcomes)
		if err != nil {
			return err
		}
		failed := lo.Filter(outcomes, func(o sensor.Outcome, _ int) bool { return !o.OK() })
		if len(failed) > 0 {
			return errors.Errorf("%d of %d sensors failed, first: %v", len(failed), len(outcomes), failed[0].Fault)
		}
		return nil
	}

	var (
		hostMu  sync.Mutex
		current = h
	)
	defer func() {
		hostMu.Lock()
		defer hostMu.Unlock()
		closeHost(current)
	}()

	period, err := conf.StatusPeriod()
	if err != nil {
		return err
	}
	cron, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if _, err := cron.NewJob(
		gocron.DurationJob(period),
		gocron.NewTask(func() {
			hostMu.Lock()
			current.LogStatus()
			hostMu.Unlock()
			flushMetrics()
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return err
	}

	var changes <-chan *config.Config
	if c.Bool(flagWatch) {
		watcher, err := config.NewWatcher(conf.ConfigFilePath, config.DefaultWatchDelay, logger.Sublogger("config"))
		if err != nil {
			return err
		}
		defer func() {
			if cerr := watcher.Close(); cerr != nil {
				logger.Errorw("error closing config watcher", "error", cerr)
			}
		}()
		changes = watcher.Config()
	}

	if err := h.Start(); err != nil {
		return err
	}
	cron.Start()
	logger.Infow("sensord started", "config", conf.ConfigFilePath, "sensors", len(conf.Sensors), "board", conf.Board.Kind)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			if err := cron.Shutdown(); err != nil {
				logger.Errorw("error stopping status job", "error", err)
			}
			flushMetrics()
			return nil
		case newConf := <-changes:
			if newConf.Board != conf.Board {
				logger.Warnw("board changes take effect after a restart", "board", newConf.Board.Kind)
				continue
			}
			newHost, err := host.New(b, sched, newConf, m, logger.Sublogger("sensors"))
			if err != nil {
				logger.Errorw("keeping the running sensors, new config rejected", "error", err)
				continue
			}
			hostMu.Lock()
			closeHost(current)
			current = newHost
			hostMu.Unlock()
			if err := newHost.Start(); err != nil {
				logger.Errorw("cannot start sensors of new config", "error", err)
				continue
			}
			conf = newConf
			logger.Infow("config reloaded", "sensors", len(conf.Sensors))
		}
	}
}

func closeHost(h *host.Host) {
	if err := h.Close(context.Background()); err != nil {
		logger.Errorw("error closing sensors", "error", err)
	}
}
