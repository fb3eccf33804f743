package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"warp-quiz-server/internal/app"
	"warp-quiz-server/internal/config"
	"warp-quiz-server/internal/domain"
	"warp-quiz-server/internal/infra/memory"
	pgarchive "warp-quiz-server/internal/infra/postgres"
	redisinfra "warp-quiz-server/internal/infra/redis"
	transport "warp-quiz-server/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port, bankID *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, *bankID)
		},
	}
	cmd.Flags().StringVar(bankID, "bank-id", "", "archived question bank to preload")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag, bankID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 4*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var results app.ResultStore = memory.NewResultStore()
	if redisClient != nil {
		results = redisinfra.NewResultStore(redisClient, redisTTL)
	}

	var archive *pgarchive.BankArchive
	if pool != nil {
		archive = pgarchive.NewBankArchive(pool)
	}

	service := app.NewQuizService(results, logger)
	if err := service.Configure(domain.QuizConfig{
		Title:        cfg.Quiz.Title,
		NumQuestions: cfg.Quiz.Questions,
		Duration:     config.TTLDuration(cfg.Quiz.Duration, 15*time.Minute),
	}); err != nil {
		return fmt.Errorf("default quiz config: %w", err)
	}

	if bankID != "" {
		if err := preloadBank(ctx, service, archive, redisClient, cfg, bankID); err != nil {
			return err
		}
		logger.Info("preloaded bank", zap.String("bankId", bankID))
	}

	tokens := transport.NewTokenService(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 12*time.Hour))
	creds := transport.RoleCredentials{
		Admin:       transport.Credential{Username: cfg.Auth.Admin.Username, Password: cfg.Auth.Admin.Password},
		Participant: transport.Credential{Username: cfg.Auth.Participant.Username, Password: cfg.Auth.Participant.Password},
	}

	var archiver transport.BankArchiver
	if archive != nil {
		archiver = archive
	}

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(service, tokens, creds, archiver, logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz server", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// preloadBank loads an archived bank through the configured cache tier so
// the admin can skip re-uploading after a restart.
func preloadBank(ctx context.Context, service *app.QuizService, archive *pgarchive.BankArchive, redisClient *redis.Client, cfg config.Config, bankID string) error {
	if archive == nil {
		return fmt.Errorf("bank preload requires postgres to be configured")
	}
	bankTTL := config.TTLDuration(cfg.Quiz.BankTTL, 10*time.Minute)

	var banks app.BankRepository = memory.NewBankCache(archive, bankTTL)
	if redisClient != nil {
		banks = redisinfra.NewBankCache(redisClient, archive, bankTTL)
	}

	bank, err := banks.GetBank(ctx, bankID)
	if err != nil {
		return fmt.Errorf("preload bank %s: %w", bankID, err)
	}
	return service.SetBank(bank)
}
