package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"
	auth "github.com/goliatone/pantry-auth"
	"github.com/goliatone/pantry-auth/config"
	"github.com/goliatone/pantry-auth/gateway"
)

// gatewayd is the public edge: it verifies bearer tokens locally with the
// shared signing key and proxies everything else, holding no state of its
// own.
func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("gatewayd"),
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

	tokens := auth.NewTokenService(
		cfg.Raw().GetAuth(),
		NewLoggerAdapter(lgr.GetLogger("tokens")),
	)

	gw := gateway.New(gateway.Upstreams{
		AuthService:    cfg.Raw().GetUpstreams().GetAuthService(),
		ProductService: cfg.Raw().GetUpstreams().GetProductService(),
	}, gateway.TokenValidatorFrom(tokens)).
		WithLogger(NewLoggerAdapter(lgr.GetLogger("gateway"))).
		WithContextKey(cfg.Raw().GetAuth().GetContextKey()).
		WithAuthScheme(cfg.Raw().GetAuth().GetAuthScheme())

	srv := fiber.New(fiber.Config{
		AppName: cfg.Raw().GetName(),
	})

	srv.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	gw.RegisterRoutes(srv)

	go func() {
		if err := srv.Listen(cfg.Raw().GetServer().GetAddr()); err != nil {
			lgr.GetLogger("server").Error("server stopped", "error", err)
		}
	}()

	WaitExitSignal()

	if err := srv.Shutdown(); err != nil {
		lgr.GetLogger("server").Error("shutdown failed", "error", err)
	}
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
