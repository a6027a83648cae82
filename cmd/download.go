package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/spotx/internal/formatter"
	"github.com/desertthunder/spotx/internal/links"
	"github.com/desertthunder/spotx/internal/metrics"
	"github.com/desertthunder/spotx/internal/models"
	"github.com/desertthunder/spotx/internal/queue"
	"github.com/desertthunder/spotx/internal/repositories"
	"github.com/desertthunder/spotx/internal/server"
	"github.com/desertthunder/spotx/internal/services"
	"github.com/desertthunder/spotx/internal/shared"
	"github.com/desertthunder/spotx/internal/tasks"
)

// queueSource builds the entries of a run once the session is connected.
type queueSource func(ctx context.Context, session *services.ProxySession, db *sql.DB) ([]models.QueueEntry, error)

// Download reads links from stdin, expands them into a queue and delivers every item.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	return r.run(ctx, cmd, false, r.readQueue)
}

// Retry requeues the items whose latest recorded outcome is a failure and runs them again.
func (r *Runner) Retry(ctx context.Context, cmd *cli.Command) error {
	return r.run(ctx, cmd, true, r.failedQueue)
}

// run drives one pipeline run. Only invalid arguments, a held lock, a missing ledger when
// requireLedger is set and a failed connect abort it; per-item failures end up in the summary.
func (r *Runner) run(ctx context.Context, cmd *cli.Command, requireLedger bool, source queueSource) error {
	if err := r.loadConfig(cmd); err != nil {
		return err
	}
	if err := r.applyRunFlags(cmd); err != nil {
		return err
	}
	if err := r.config.Validate(); err != nil {
		return err
	}
	cfg := r.config

	lock, err := shared.LockDir(cfg.Output.Dir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release output lock", "path", lock.Path(), "err", err)
		}
	}()

	db, err := shared.OpenLedger(cfg.Database)
	if err != nil {
		if requireLedger {
			return fmt.Errorf("failed to open delivery ledger: %w", err)
		}
		r.logger.Warn("delivery ledger unavailable, outcomes will not be recorded", "path", cfg.Database.Path, "err", err)
	} else {
		defer db.Close()
	}

	session, err := r.connect(ctx, cmd)
	if err != nil {
		return err
	}

	entries, err := source(ctx, session, db)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return r.writePlain("Nothing to download.\n")
	}

	sink := r.newSink()
	acquirer := tasks.NewAcquirer(session, tasks.AcquirerOptions{
		RequireCover: sink.RequiresCover(),
		KeyRetries:   cfg.Pacing.KeyRetries,
	}, r.logger)
	engine := tasks.NewEngine(acquirer, sink, tasks.EngineOptions{
		OutputDir: cfg.Output.Dir,
		Grouped:   r.grouped(),
		Interval:  cfg.Pacing.Interval,
	}, r.logger)

	m := metrics.New()
	m.SetQueueSize(len(entries))
	recorders := tasks.Recorders{m}

	var ledger *repositories.Ledger
	if db != nil {
		ledger = repositories.NewLedger(db)
		if _, err := ledger.Begin(sink.Name(), cfg.Output.Dir, len(entries)); err != nil {
			r.logger.Warn("failed to record run, outcomes will not be recorded", "err", err)
			ledger = nil
		} else {
			recorders = append(recorders, ledger)
		}
	}
	engine.SetRecorder(recorders)

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, runErr := engine.Run(ctx, entries, progress)
	close(progress)
	<-printed

	r.report(result, ledger, m, sink.Name())
	return runErr
}

// applyRunFlags lets command-line flags override the file and environment config.
func (r *Runner) applyRunFlags(cmd *cli.Command) error {
	if cmd.IsSet("helper") && cmd.Bool("direct") {
		return fmt.Errorf("%w: --helper and --direct are mutually exclusive", shared.ErrInvalidArgument)
	}

	cfg := r.config
	if cmd.IsSet("output") {
		cfg.Output.Dir = cmd.String("output")
	}
	if cmd.IsSet("layout") {
		cfg.Output.Layout = cmd.String("layout")
	}
	if cmd.IsSet("helper") {
		cfg.Delivery.HelperPath = cmd.String("helper")
		cfg.Delivery.Mode = shared.ModeHelper
	}
	if cmd.Bool("direct") {
		cfg.Delivery.Mode = shared.ModeDirect
	}
	if cmd.IsSet("interval") {
		cfg.Pacing.Interval = cmd.Duration("interval")
	}
	if cmd.IsSet("stage-cover") {
		cfg.Delivery.StageCover = cmd.Bool("stage-cover")
	}
	return nil
}

func (r *Runner) grouped() bool {
	return r.config.Output.Layout == shared.LayoutGrouped
}

// connect resolves credentials, opens the session and caches the reusable credentials it returns.
func (r *Runner) connect(ctx context.Context, cmd *cli.Command) (*services.ProxySession, error) {
	cfg := r.config
	cache := services.NewCredentialsCache(cfg.CredentialsPath())

	token, username := cfg.AccessToken, cfg.Username
	if cmd.IsSet("access-token") {
		token = cmd.String("access-token")
	}
	if cmd.IsSet("username") {
		username = cmd.String("username")
	}

	providers, err := services.Providers(services.ProviderOptions{
		AccessToken:    token,
		AccessTokenSet: cmd.IsSet("access-token"),
		Username:       username,
		UsernameSet:    cmd.IsSet("username"),
		Cache:          cache,
		Authorizer:     r.newAuthorizer(),
	})
	if err != nil {
		return nil, err
	}

	creds, err := services.ResolveCredentials(ctx, r.logger, providers...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrConnectionFailed, err)
	}

	session, err := services.Connect(ctx, cfg.Session.ProxyURL, creds, services.ConnectOptions{
		RequestsPerSecond: cfg.Session.RequestsPerSecond,
		HTTPClient:        r.httpClient,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Info("connected", "username", session.Username(), "proxy", cfg.Session.ProxyURL)

	if reusable := session.ReusableCredentials(); reusable != nil {
		if err := cache.Save(reusable); err != nil {
			r.logger.Warn("failed to cache credentials", "path", cache.Path(), "err", err)
		}
	}
	return session, nil
}

// newAuthorizer returns the interactive login flow, or nil when the config cannot run one.
func (r *Runner) newAuthorizer() services.Authorizer {
	if r.authorizer != nil {
		return r.authorizer
	}
	flow, err := server.NewOAuthFlow(r.config.Session.ClientID, r.config.Session.RedirectURI, server.StreamingScopes, r.output, r.logger)
	if err != nil {
		r.logger.Debug("interactive login unavailable", "err", err)
		return nil
	}
	return flow
}

func (r *Runner) newSink() tasks.Sink {
	cfg := r.config
	if cfg.Delivery.Mode == shared.ModeDirect {
		return tasks.NewDirectSink(r.logger)
	}

	var covers *tasks.CoverStager
	if cfg.Delivery.StageCover {
		covers = tasks.NewCoverStager(cfg.Artwork, cfg.Delivery.CoverMaxSize, r.logger)
	}
	return tasks.NewHelperSink(cfg.Delivery.HelperPath, covers, r.logger)
}

// readQueue parses links from the input and expands containers into leaf entries.
func (r *Runner) readQueue(ctx context.Context, session *services.ProxySession, _ *sql.DB) ([]models.QueueEntry, error) {
	r.logger.Infof("reading links from stdin, end with %q", links.Sentinel)

	reader := links.NewReader(r.input, r.logger)
	parsed, err := reader.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	stats := reader.Stats()
	r.logger.Info("read input", "lines", stats.Lines, "links", stats.Links, "skipped", stats.Skipped, "unsupported", stats.Unsupported)

	q := queue.New()
	if failed := queue.NewExpander(q, session, r.grouped(), r.logger).ExpandAll(ctx, parsed); failed > 0 {
		r.logger.Warn("some links could not be expanded", "failed", failed)
	}
	return q.Entries(), nil
}

// failedQueue requeues ledger items whose latest outcome is a failure, oldest first.
func (r *Runner) failedQueue(_ context.Context, _ *services.ProxySession, db *sql.DB) ([]models.QueueEntry, error) {
	failed, err := repositories.NewDeliveryRepository(db).LatestFailed()
	if err != nil {
		return nil, err
	}

	q := queue.New()
	for _, d := range failed {
		entry := d.Entry()
		if !r.grouped() {
			entry.Group = ""
		}
		q.Insert(entry)
	}
	r.logger.Info("requeued failed items", "items", q.Len())
	return q.Entries(), nil
}

// report finalizes the ledger, manifest and metrics of a run and prints its summary.
func (r *Runner) report(result *tasks.RunResult, ledger *repositories.Ledger, m *metrics.Metrics, mode string) {
	var run *models.Run
	if ledger != nil {
		if err := ledger.Finish(result); err != nil {
			r.logger.Warn("failed to record run result", "err", err)
		}
		run = ledger.Run()
	} else {
		run = models.NewRun(0, mode, r.config.Output.Dir)
		run.SetID(shared.GenerateID())
		run.SetQueued(result.Queued)
		run.Finish(result.Delivered, result.Skipped, result.Failed)
	}

	if path, err := formatter.WriteRunManifest(r.config.Output.Dir, formatter.NewRunManifest(run, result)); err != nil {
		r.logger.Warn("failed to write run manifest", "err", err)
	} else {
		r.logger.Debug("wrote run manifest", "path", path)
	}

	m.ObserveRun(result)
	if path := r.config.Metrics.Textfile; path != "" {
		if err := m.WriteTextfile(path); err != nil {
			r.logger.Warn("failed to write metrics", "path", path, "err", err)
		}
	}

	r.writePlain("\n")
	r.writePlainHeader("Run complete")
	r.writePlain("%s\n", formatter.RenderSummary(result))
}
