package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/signaware/internal/application"
	appchat "github.com/bryanwahyu/signaware/internal/application/chat"
	appdocs "github.com/bryanwahyu/signaware/internal/application/documents"
	appmask "github.com/bryanwahyu/signaware/internal/application/masking"
	appusers "github.com/bryanwahyu/signaware/internal/application/users"
	"github.com/bryanwahyu/signaware/internal/config"
	"github.com/bryanwahyu/signaware/internal/domain/chat"
	"github.com/bryanwahyu/signaware/internal/domain/documents"
	"github.com/bryanwahyu/signaware/internal/domain/users"
	"github.com/bryanwahyu/signaware/internal/infra/ai/ollama"
	"github.com/bryanwahyu/signaware/internal/infra/ai/openai"
	"github.com/bryanwahyu/signaware/internal/infra/db/memory"
	mysqlp "github.com/bryanwahyu/signaware/internal/infra/db/mysql"
	"github.com/bryanwahyu/signaware/internal/infra/db/postgres"
	"github.com/bryanwahyu/signaware/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/signaware/internal/infra/extract"
	"github.com/bryanwahyu/signaware/internal/infra/httpserver"
	"github.com/bryanwahyu/signaware/internal/infra/ratelimit"
	minioStore "github.com/bryanwahyu/signaware/internal/infra/storage"
	"github.com/bryanwahyu/signaware/internal/logger"
	"github.com/bryanwahyu/signaware/internal/middleware"
)

// repos dari driver yang dipilih
type stores struct {
	users     users.Repository
	documents documents.Repository
	messages  chat.Repository
	health    middleware.HealthChecker
	close     func() error
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := 0
	if err := run(ctx, cfg, zl); err != nil {
		zl.Error("server stopped with error", zap.Error(err))
		code = 1
	} else {
		zl.Info("server stopped")
	}
	// os.Exit melewati defer, jadi cleanup dipanggil manual
	stop()
	_ = zl.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	st, err := openStores(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer st.close()

	checkers := map[string]middleware.HealthChecker{"database": st.health}

	// init minio (opsional)
	var objects documents.ObjectStore
	if cfg.Minio.Enabled {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		objects = store
		checkers["storage"] = store
	}

	var limiter middleware.Limiter
	if cfg.RateLimit.Enabled {
		if cfg.Redis.Addr != "" {
			client, err := ratelimit.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
			if err != nil {
				return fmt.Errorf("redis init: %w", err)
			}
			defer client.Close()
			fw, err := ratelimit.NewFixedWindow(client, cfg.Redis.Prefix, cfg.RateLimit.Limit, cfg.RateLimit.Window, zl)
			if err != nil {
				return err
			}
			limiter = fw
			checkers["redis"] = fw
		} else {
			limiter = middleware.NewLocalLimiter(ctx, cfg.RateLimit.Limit, cfg.RateLimit.Window)
		}
	}

	// init providers
	analyzer := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, cfg.OpenAI.Timeout, zl)
	masker := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.Model, cfg.Ollama.Timeout, zl)

	clock := application.SystemClock{}
	handler := httpserver.NewRouter(httpserver.Deps{
		Users: &appusers.Service{Repo: st.users, Clock: clock, Log: zl.Named("users")},
		Documents: &appdocs.Service{
			Repo:            st.documents,
			Users:           st.users,
			Objects:         objects,
			Extractor:       extract.New(),
			Analyzer:        analyzer,
			Clock:           clock,
			Log:             zl.Named("documents"),
			ProcessingLease: cfg.Analysis.ProcessingLease,
		},
		Chat: &appchat.Service{
			Docs:     st.documents,
			Messages: st.messages,
			Chatter:  analyzer,
			Clock:    clock,
			Log:      zl.Named("chat"),
		},
		Masking: &appmask.Service{
			Docs:   st.documents,
			Masker: masker,
			Clock:  clock,
			Log:    zl.Named("masking"),
		},
		Limiter:        limiter,
		RateWindow:     cfg.RateLimit.Window,
		Ready:          st.health,
		Checkers:       checkers,
		CORSOrigins:    cfg.Server.CORSOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Log:            zl,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("server listening",
			zap.String("addr", addr),
			zap.String("database", cfg.Database.Driver),
			zap.String("analysis_model", cfg.OpenAI.Model),
			zap.String("masking_model", cfg.Ollama.Model),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, zl *zap.Logger) (*stores, error) {
	var (
		db      *sqlx.DB
		dialect sqlstore.Dialect
		migrate func(*sqlx.DB, *zap.Logger) error
		err     error
	)
	switch cfg.Database.Driver {
	case "memory":
		zl.Warn("using in-memory store, data is lost on restart")
		m := memory.New()
		return &stores{
			users:     m.Users(),
			documents: m.Documents(),
			messages:  m.Messages(),
			health:    m,
			close:     func() error { return nil },
		}, nil
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		dialect, migrate = mysqlp.Dialect(), mysqlp.Migrate
	default:
		db, err = postgres.Connect(ctx, cfg.PostgresDSN())
		dialect, migrate = postgres.Dialect(), postgres.Migrate
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
	}
	if !cfg.Database.SkipMigrate {
		if err := migrate(db, zl.Named("migrate")); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s migrate: %w", cfg.Database.Driver, err)
		}
	}
	s := sqlstore.New(db, dialect, zl)
	return &stores{
		users:     s.Users(),
		documents: s.Documents(),
		messages:  s.Messages(),
		health:    s,
		close:     db.Close,
	}, nil
}
