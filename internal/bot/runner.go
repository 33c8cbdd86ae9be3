// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rovshanmuradov/solana-fanout/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-fanout/internal/channel"
	"github.com/rovshanmuradov/solana-fanout/internal/config"
	"github.com/rovshanmuradov/solana-fanout/internal/confirm"
	"github.com/rovshanmuradov/solana-fanout/internal/dispatch"
	"github.com/rovshanmuradov/solana-fanout/internal/export"
	"github.com/rovshanmuradov/solana-fanout/internal/lookup"
	"github.com/rovshanmuradov/solana-fanout/internal/metrics"
	"github.com/rovshanmuradov/solana-fanout/internal/nonce"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol"
	"github.com/rovshanmuradov/solana-fanout/internal/protocol/pumpfun"
	"github.com/rovshanmuradov/solana-fanout/internal/task"
	"github.com/rovshanmuradov/solana-fanout/internal/trade"
	"github.com/rovshanmuradov/solana-fanout/internal/wallet"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Runner собирает движок из конфигурации и прогоняет файл задач.
type Runner struct {
	logger      *zap.Logger
	config      *config.Config
	registry    *prometheus.Registry
	shutdown    *ShutdownHandler
	taskManager *task.Manager
	service     *trade.Service
	out         io.Writer // итоговая таблица

	bg sync.WaitGroup
}

// NewRunner NewRunner: принимает cfg и logger
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		logger:      logger,
		config:      cfg,
		registry:    prometheus.NewRegistry(),
		shutdown:    NewShutdownHandler(logger, shutdownTimeout),
		taskManager: task.NewManager(logger),
		out:         os.Stdout,
	}
}

// Initialize создаёт клиент, фоновые синхронизаторы, каналы, диспетчер и
// реестр протоколов. Всё созданное регистрируется для Shutdown.
func (r *Runner) Initialize(ctx context.Context) error {
	cfg := r.config

	w, err := wallet.NewWallet(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	r.logger.Info("Wallet loaded", zap.String("public_key", w.PublicKey().String()))

	collector, err := metrics.NewCollector(r.registry)
	if err != nil {
		return err
	}
	r.serveMetrics()

	client, err := solbc.NewClient(cfg.RPCList, r.logger)
	if err != nil {
		return fmt.Errorf("failed to create ledger client: %w", err)
	}
	client.ObserveRPC(collector.RecordRPCLatency)
	client.SetRetries(cfg.RPCRetries)
	r.logger.Info("Ledger client ready", zap.Strings("rpc", cfg.MaskedRPCList()))

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.shutdown.AddFunc("background", func() error {
		cancel()
		r.bg.Wait()
		return nil
	})

	nonces, err := r.startNonce(bgCtx, client, w.PublicKey())
	if err != nil {
		return err
	}

	tables, err := cfg.LookupTables()
	if err != nil {
		return err
	}
	cache := lookup.NewCache()
	if len(tables) > 0 {
		loader := lookup.NewLoader(client, cache, tables, cfg.Lookup.Refresh, r.logger)
		// холодный кэш допустим: сделки уходят без сжатия
		if err := loader.LoadAll(ctx); err != nil {
			r.logger.Warn("Initial lookup table load failed", zap.Error(err))
		}
		r.goBackground(bgCtx, loader.Run)
	}

	channels, err := r.startChannels(ctx, client)
	if err != nil {
		return err
	}

	var poller *confirm.Poller
	if cfg.Confirm.Enabled {
		poller = confirm.NewPoller(client, cfg.Confirm.Interval, r.logger).
			RequireFinalized(cfg.Confirm.RequireFinalized)
	}

	dispatcher, err := dispatch.New(channels, dispatch.Deps{
		Client:  client,
		Nonces:  nonces,
		Tables:  cache,
		Poller:  poller,
		Metrics: collector,
		Logger:  r.logger,
	}, dispatch.Config{
		Confirm:        cfg.Confirm.Enabled,
		ConfirmTimeout: cfg.Confirm.Timeout,
		LookupTables:   tables,
	})
	if err != nil {
		return err
	}

	registry, err := r.registerProtocols(client, w)
	if err != nil {
		return err
	}

	r.service, err = trade.NewService(trade.Config{
		Registry:   registry,
		Dispatcher: dispatcher,
		Payer:      w,
		Fees:       cfg.Fees.Profile(),
		Logger:     r.logger,
	})
	return err
}

func (r *Runner) startNonce(ctx context.Context, client *solbc.Client, payer solana.PublicKey) (*nonce.Manager, error) {
	account, authority, ok, err := r.config.NonceKeys(payer)
	if err != nil || !ok {
		return nil, err
	}

	manager := nonce.NewManager()
	manager.Configure(account, authority)
	syncer := nonce.NewSyncer(client, manager, r.config.Nonce.Sync, r.logger)
	r.goBackground(ctx, syncer.Run)

	r.logger.Info("Durable nonce enabled",
		zap.String("account", account.String()),
		zap.String("authority", authority.String()))
	return manager, nil
}

// startChannels создаёт адаптеры и запускает фоновые части. Ошибка старта
// не фатальна: бандл-канал переподключается при отправке.
func (r *Runner) startChannels(ctx context.Context, client *solbc.Client) ([]channel.Channel, error) {
	descs, err := r.config.ChannelDescriptors()
	if err != nil {
		return nil, err
	}
	channels, err := channel.NewAll(descs, channel.Deps{Client: client, Logger: r.logger})
	if err != nil {
		return nil, err
	}

	for _, ch := range channels {
		lc, ok := ch.(channel.Lifecycle)
		if !ok {
			continue
		}
		if err := lc.Start(ctx); err != nil {
			r.logger.Warn("Channel start failed",
				zap.String("channel", ch.Name()),
				zap.Error(err))
		}
		r.shutdown.Add("channel_"+ch.Name(), lc)
	}

	r.logger.Info("Channels configured", zap.Int("count", len(channels)))
	return channels, nil
}

func (r *Runner) registerProtocols(client *solbc.Client, w *wallet.Wallet) (*protocol.Registry, error) {
	registry := protocol.NewRegistry(r.logger)

	addrs, err := r.config.PumpFun.Addresses()
	if err != nil {
		return nil, err
	}
	pf, err := pumpfun.NewBuilder(client, w, addrs, r.logger)
	if err != nil {
		return nil, err
	}
	if err := registry.Register(pf); err != nil {
		return nil, err
	}
	return registry, nil
}

func (r *Runner) serveMetrics() {
	if r.config.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              r.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	r.shutdown.AddFunc("metrics_server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	r.logger.Info("Metrics server started", zap.String("addr", r.config.MetricsAddr))
}

func (r *Runner) goBackground(ctx context.Context, fn func(context.Context)) {
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		fn(ctx)
	}()
}

// Run загружает задачи и выполняет их по очереди. Ошибка возвращается,
// если задачи не загрузились или не прошла ни одна сделка.
func (r *Runner) Run(ctx context.Context) error {
	if r.service == nil {
		return fmt.Errorf("runner is not initialized")
	}

	tasks, err := r.taskManager.Load(r.config.TasksFile)
	if err != nil {
		return err
	}
	r.logger.Info(fmt.Sprintf("📋 Loaded %d trading tasks", len(tasks)))

	intents := make([]protocol.TradeIntent, len(tasks))
	for i, t := range tasks {
		intents[i] = t.Intent
	}

	results := r.service.ExecuteAll(ctx, intents, r.config.TradePause)

	failed := 0
	for i, res := range results {
		log := r.logger.With(zap.String("task", tasks[i].TaskName))
		switch {
		case res.Err == nil:
			log.Info("✅ Task completed",
				zap.String("winner", res.Report.Winner.Channel),
				zap.String("signature", res.Report.Winner.Signature.String()),
				zap.Int("succeeded", res.Report.Succeeded()))
		case trade.IsAborted(res.Err):
			failed++
			log.Warn("Task aborted before fan-out", zap.Error(res.Err))
		default:
			failed++
			log.Error("Task failed on every channel", zap.Error(res.Err))
		}
	}

	fmt.Fprintln(r.out, RenderSummary(tasks, results))
	r.exportReport(tasks, results)

	if len(results) > 0 && failed == len(results) {
		return fmt.Errorf("all %d tasks failed", failed)
	}
	return nil
}

// exportReport пишет отчёт по каналам, если задан report_dir. Ошибка только логируется.
func (r *Runner) exportReport(tasks []task.Task, results []trade.Result) {
	if r.config.ReportDir == "" || len(results) == 0 {
		return
	}
	format, err := export.ParseFormat(r.config.ReportFormat)
	if err != nil {
		r.logger.Warn("Report export skipped", zap.Error(err))
		return
	}

	names := make([]string, len(tasks))
	for i, t := range tasks {
		names[i] = t.TaskName
	}
	records := export.Records(names, results, time.Now())
	if _, err := export.NewTradeExporter(r.logger).ExportRecords(records, export.ExportOptions{
		Format:    format,
		OutputDir: r.config.ReportDir,
	}); err != nil {
		r.logger.Warn("Report export failed", zap.Error(err))
	}
}

// Shutdown останавливает фоновые задачи, каналы и сервер метрик.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.logger.Info("👋 Sender shutting down gracefully")
	return r.shutdown.Shutdown(ctx)
}
