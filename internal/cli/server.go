package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/broadcast"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/objectstore"
	pgstore "live-quiz-service/internal/infra/postgres"
	"live-quiz-service/internal/infra/rabbitmq"
	redisstore "live-quiz-service/internal/infra/redis"
	"live-quiz-service/internal/jobs"
	transport "live-quiz-service/internal/transport/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	var archiver app.Archiver
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = pgstore.NewQuizLoader(pool)

		db := openBunDB(cfg.Postgres.URL)
		defer db.Close()
		archiver = pgstore.NewArchive(db)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	var store app.SessionRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
		store = memory.NewSessionStore()
	}

	hub := broadcast.NewHub()
	sinks := []broadcast.Sink{hub}
	if redisClient != nil {
		sinks = append(sinks, redisstore.NewPublisher(redisClient, redisTTL))
	}
	if cfg.RabbitMQ.URL != "" {
		amqpPub, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer amqpPub.Close()
		sinks = append(sinks, amqpPub)
	}
	dispatcher := broadcast.NewDispatcher(sinks...)

	opts := []app.ServiceOption{app.WithLateJoinDefault(cfg.Session.AllowLateJoin)}
	if archiver != nil {
		opts = append(opts, app.WithArchiver(archiver))
	}
	if cfg.Images.Endpoint != "" {
		signer, err := objectstore.NewImageSigner(objectstore.Config{
			Endpoint:  cfg.Images.Endpoint,
			AccessKey: cfg.Images.AccessKey,
			SecretKey: cfg.Images.SecretKey,
			Bucket:    cfg.Images.Bucket,
			Region:    cfg.Images.Region,
			UseSSL:    cfg.Images.UseSSL,
			URLTTL:    config.TTLDuration(cfg.Images.URLTTL, time.Hour),
		})
		if err != nil {
			return err
		}
		opts = append(opts, app.WithImageResolver(signer))
	}
	service := app.NewSessionService(store, quizRepo, dispatcher, opts...)

	secret := cfg.Auth.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Printf("auth.secret not set, using an ephemeral secret; tokens will not survive a restart")
	}

	reaper, err := jobs.NewReaper(service, cfg.Session.ReapSchedule,
		config.TTLDuration(cfg.Session.IdleTimeout, 30*time.Minute),
		config.TTLDuration(cfg.Session.Retention, time.Hour))
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(transport.RouterConfig{
			Service:     service,
			Hub:         hub,
			Auth:        auth.NewAuthenticator(secret),
			CORSOrigins: cfg.Server.CORSOrigins,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		log.Printf("starting live quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reaper.Start()
		<-gctx.Done()
		reaper.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuizzes backs the service when no database is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:        "q1",
					Text:      "What is 2 + 2?",
					TimeLimit: 20,
					Options: []domain.Option{
						{Text: "3"},
						{Text: "4", Correct: true},
						{Text: "5"},
					},
				},
				{
					ID:        "q2",
					Text:      "Which planet is known as the red planet?",
					TimeLimit: 20,
					Options: []domain.Option{
						{Text: "Venus"},
						{Text: "Mars", Correct: true},
						{Text: "Jupiter"},
						{Text: "Mercury"},
					},
				},
			},
		},
	}
}
