package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kalinanews/newsroom/activitymap"
	"github.com/kalinanews/newsroom/api"
	"github.com/kalinanews/newsroom/auth"
	"github.com/kalinanews/newsroom/config"
	"github.com/kalinanews/newsroom/content"
	"github.com/kalinanews/newsroom/logging"
	"github.com/kalinanews/newsroom/metrics"
	"github.com/kalinanews/newsroom/persistence"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

const usage = `usage: newsroom [-env file] <command> [flags]

commands:
  serve          migrate and start the HTTP server (default)
  migrate        apply pending migrations
  rollback       roll back the last migration group
  status         list pending migrations
  create-admin   create an admin account (-username, -email, -password)
`

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup runs first
func run() int {
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cmd, args := "serve", []string(nil)
	if flag.NArg() > 0 {
		cmd, args = flag.Arg(0), flag.Args()[1:]
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := persistence.Open(ctx, persistence.Options{
		Driver:    cfg.DBDriver,
		DSN:       cfg.DBDSN,
		Logger:    logger.Named("db"),
		SlowQuery: 200 * time.Millisecond,
	})
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		return 1
	}
	defer db.Close()

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, db, logger)
	case "migrate":
		err = migrate(ctx, db, logger)
	case "rollback":
		err = rollback(ctx, db, logger)
	case "status":
		err = status(ctx, db)
	case "create-admin":
		err = createAdmin(ctx, cfg, db, logger, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", cmd), zap.Error(err))
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, db *bun.DB, logger *zap.Logger) error {
	if err := migrate(ctx, db, logger); err != nil {
		return err
	}

	tokenCfg, err := cfg.TokenConfig()
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(tokenCfg, logging.NewAuthLogger(logger, "tokens"))
	if err != nil {
		return err
	}
	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}

	m := metrics.New()
	authLogger := logging.NewAuthLogger(logger, "auth")
	sink := auth.MultiActivitySink{
		activitymap.AuditSink(logger.Named("activity")),
		m.ActivitySink(),
	}

	users := auth.NewUsersRepository(db)
	authenticator := auth.NewAuthenticator(users, hasher, tokens).
		WithLogger(authLogger).
		WithActivitySink(sink)

	h := api.NewController(
		api.WithAuthenticator(authenticator),
		api.WithRegistration(auth.NewRegisterUserHandler(users, hasher).
			WithLogger(authLogger).
			WithActivitySink(sink)),
		api.WithAccounts(auth.NewAccountService(users, hasher,
			auth.WithAccountLogger(authLogger),
			auth.WithAccountActivitySink(sink),
			auth.WithPhoneRegion(cfg.PhoneRegion),
		)),
		api.WithContent(content.NewService(db,
			content.WithLogger(logging.NewAuthLogger(logger, "content")),
			content.WithMaxPageLimit(cfg.PageLimitMax),
		)),
		api.WithDB(db),
		api.WithLogger(logging.NewAuthLogger(logger, "api")),
		api.WithMaxPageLimit(cfg.PageLimitMax),
	)

	app := api.NewApp(api.ServerConfig{
		Prefix:         cfg.APIPrefix,
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger.Named("http"),
		Metrics:        m,
	}, h, api.NewGuards(authenticator))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("prefix", cfg.APIPrefix),
			zap.String("env", cfg.Env),
		)
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exiting")
	return nil
}

func migrate(ctx context.Context, db *bun.DB, logger *zap.Logger) error {
	applied, err := persistence.NewMigrator(db).Migrate(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		logger.Info("database is up to date")
		return nil
	}
	logger.Info("migrations applied", zap.Strings("migrations", applied))
	return nil
}

func rollback(ctx context.Context, db *bun.DB, logger *zap.Logger) error {
	rolled, err := persistence.NewMigrator(db).Rollback(ctx)
	if err != nil {
		return err
	}
	logger.Info("migrations rolled back", zap.Strings("migrations", rolled))
	return nil
}

func status(ctx context.Context, db *bun.DB) error {
	pending, err := persistence.NewMigrator(db).Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("no pending migrations")
		return nil
	}
	fmt.Println("pending migrations:")
	for _, name := range pending {
		fmt.Println("  " + name)
	}
	return nil
}

func createAdmin(ctx context.Context, cfg *config.Config, db *bun.DB, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	username := fs.String("username", "admin", "admin username")
	email := fs.String("email", "", "admin email")
	password := fs.String("password", os.Getenv(config.Prefix+"_ADMIN_PASSWORD"), "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("create-admin: -email is required")
	}

	if err := migrate(ctx, db, logger); err != nil {
		return err
	}

	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	register := auth.NewRegisterUserHandler(auth.NewUsersRepository(db), hasher).
		WithLogger(logging.NewAuthLogger(logger, "auth")).
		WithActivitySink(activitymap.AuditSink(logger.Named("activity")))

	user, err := register.CreateWithRole(ctx, auth.RegisterUserMessage{
		Username: *username,
		Email:    *email,
		Password: *password,
	}, auth.RoleAdmin)
	if err != nil {
		return err
	}
	logger.Info("admin account created", zap.String("user_id", user.ID.String()), zap.String("username", user.Username))
	return nil
}
