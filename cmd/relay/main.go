package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hashanchor/receipt-bridge/config"
	"github.com/hashanchor/receipt-bridge/db"
	"github.com/hashanchor/receipt-bridge/entity"
	"github.com/hashanchor/receipt-bridge/ethclient"
	"github.com/hashanchor/receipt-bridge/logging"
	"github.com/hashanchor/receipt-bridge/presenter"
	"github.com/hashanchor/receipt-bridge/relay"
	"github.com/hashanchor/receipt-bridge/repository"
)

func main() {
	logger := logging.New()

	cfg, err := config.ReadConfigFromFile("config.yml")
	if err != nil {
		logger.WithError(err).Fatal("can't read config")
	}
	if err = logging.SetLevel(logger, cfg.LogLevel); err != nil {
		logger.WithError(err).Fatal("can't apply log level")
	}

	ctx, cancel := context.WithCancel(context.Background())

	dbConn, err := db.ConnectToDBAndMigrate(ctx, cfg.DBConfig)
	if err != nil {
		logger.WithError(err).Fatal("can't connect to database and apply migrations")
	}
	defer dbConn.Close()

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		err2 := http.ListenAndServe(":2112", nil)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't start listener for prometheus metrics")
		}
	}()

	repo := repository.NewRepo(dbConn)

	clients := make(map[entity.Chain]ethclient.Client, len(cfg.Chains))
	for name, chainCfg := range cfg.Chains {
		chain, err2 := entity.ParseChain(name)
		if err2 != nil {
			logger.WithError(err2).Fatal("unsupported chain in config")
		}
		client, err2 := ethclient.NewClient(
			chainCfg.RPC.Host,
			time.Duration(chainCfg.RPC.Timeout),
			chainCfg.ChainID,
			common.HexToAddress(chainCfg.AnchorAddress),
			chainCfg.SignerKey,
		)
		if err2 != nil {
			logger.WithError(err2).WithField("chain", name).Fatal("can't dial rpc client")
		}
		clients[chain] = client
	}

	relayer := relay.NewRelayer(logger.WithField("service", "relayer"), clients, cfg.Relay)
	monitor := relay.NewMonitor(logger.WithField("service", "monitor"), clients, cfg)
	scheduler := relay.NewScheduler(logger.WithField("service", "scheduler"), repo, relayer, monitor)

	if err = scheduler.ResumeJobs(ctx); err != nil {
		logger.WithError(err).Fatal("can't resume interrupted bridge jobs")
	}

	pr := presenter.NewPresenter(ctx, logger.WithField("service", "presenter"), repo, scheduler, cfg)
	go func() {
		err2 := pr.Serve(cfg.Presenter.Host)
		if err2 != nil {
			logger.WithError(err2).Fatal("can't serve bridge api")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	for range c {
		cancel()
		logger.Warn("caught CTRL-C, gracefully terminating")
		scheduler.Wait()
		return
	}
}
