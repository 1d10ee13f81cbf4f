package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	auth "github.com/goliatone/pantry-auth"
	"github.com/goliatone/pantry-auth/config"
	"github.com/goliatone/pantry-auth/credstore"
	"github.com/goliatone/pantry-auth/rest"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// authd is the session service: it owns token issuance, verification, and
// the revocation ledger. Credentials live behind the user service; when no
// user service is configured it falls back to the local store so the whole
// stack can run as a single process in development.
type App struct {
	config   *gconfig.Container[*config.AppConfig]
	bunDB    *bun.DB
	repo     auth.RepositoryManager
	sessions *auth.Sessions
	tokens   auth.TokenService
	logger   *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("authd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	cfg := gconfig.New(&config.AppConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx := context.Background()
	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithSessions(ctx, app); err != nil {
		panic(err)
	}

	srv := BuildServer(app)

	go func() {
		if err := srv.Listen(cfg.Raw().GetServer().GetAddr()); err != nil {
			app.GetLogger("server").Error("server stopped", "error", err)
		}
	}()

	WaitExitSignal()

	if err := srv.Shutdown(); err != nil {
		app.GetLogger("server").Error("shutdown failed", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.config.Raw().GetPersistence().GetDSN())
	if err != nil {
		return err
	}

	persistence.RegisterModel((*auth.User)(nil))
	persistence.RegisterModel((*auth.RevokedToken)(nil))

	pcfg := app.config.Raw().GetPersistence()
	dialect := sqlitedialect.New()
	client, err := persistence.New(pcfg, db, dialect)
	if err != nil {
		return err
	}

	client.SetLogger(app.GetLogger("persistence"))
	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return err
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)
	if err := client.ValidateDialects(ctx); err != nil {
		return err
	}

	if err := client.Migrate(ctx); err != nil {
		return err
	}

	app.bunDB = client.DB()
	app.repo = auth.NewRepositoryManager(app.bunDB)

	return nil
}

func WithSessions(ctx context.Context, app *App) error {
	acfg := app.config.Raw().GetAuth()

	app.tokens = auth.NewTokenService(acfg, NewLoggerAdapter(app.GetLogger("tokens")))

	var store auth.IdentityStore
	if upstream := app.config.Raw().GetUpstreams().GetUserService(); upstream != "" {
		store = credstore.NewClient(upstream).
			WithLogger(NewLoggerAdapter(app.GetLogger("credstore")))
	} else {
		store = auth.NewUserProvider(app.repo)
	}

	app.sessions = auth.NewSessions(
		store,
		app.tokens,
		app.repo.Revocations(),
		auth.WithActivitySink(auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
			app.GetLogger("activity").Info("event",
				"type", string(event.EventType),
				"subject", event.Subject,
			)
			return nil
		})),
	).WithLogger(NewLoggerAdapter(app.GetLogger("sessions")))

	return nil
}

func BuildServer(app *App) *fiber.App {
	srv := fiber.New(fiber.Config{
		AppName: app.config.Raw().GetName(),
	})

	srv.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	ctrl := rest.NewSessionController(app.sessions, app.tokens).
		WithLogger(NewLoggerAdapter(app.GetLogger("rest"))).
		WithAuthScheme(app.config.Raw().GetAuth().GetAuthScheme())
	ctrl.RegisterRoutes(srv)

	return srv
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}

// LoggerAdapter bridges glog's structured logger to the printf-style
// Logger the auth package expects.
type LoggerAdapter struct {
	lgr glog.Logger
}

func NewLoggerAdapter(lgr glog.Logger) LoggerAdapter {
	return LoggerAdapter{lgr: lgr}
}

func (l LoggerAdapter) Debug(format string, args ...any) { l.lgr.Debug(fmt.Sprintf(format, args...)) }
func (l LoggerAdapter) Info(format string, args ...any)  { l.lgr.Info(fmt.Sprintf(format, args...)) }
func (l LoggerAdapter) Warn(format string, args ...any)  { l.lgr.Warn(fmt.Sprintf(format, args...)) }
func (l LoggerAdapter) Error(format string, args ...any) { l.lgr.Error(fmt.Sprintf(format, args...)) }
