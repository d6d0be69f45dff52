package cli

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	pgstore "live-quiz-service/internal/infra/postgres"
	redisstore "live-quiz-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewQuizCmd groups quiz content management commands.
func NewQuizCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Manage quiz content",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.json>",
		Short: "Validate and upsert quizzes from a JSON file (one quiz or an array)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			quizzes, err := readQuizFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			loader := pgstore.NewQuizLoader(pool)
			var cache *redisstore.QuizRepository
			if cfg.Redis.Addr != "" {
				client := redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer client.Close()
				cache = redisstore.NewQuizRepository(client, loader, config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute))
			}
			for _, quiz := range quizzes {
				if err := loader.SaveQuiz(cmd.Context(), quiz); err != nil {
					return fmt.Errorf("quiz %s: %w", quiz.ID, err)
				}
				// sessions started after this load the new content
				if cache != nil {
					if err := cache.Invalidate(cmd.Context(), quiz.ID); err != nil {
						log.Printf("invalidate cached quiz %s: %v", quiz.ID, err)
					}
				}
				log.Printf("imported quiz %s (%d questions)", quiz.ID, len(quiz.Questions))
			}
			return nil
		},
	})
	return cmd
}

func readQuizFile(path string) ([]domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var many []domain.Quiz
	if err := json.Unmarshal(data, &many); err == nil {
		return many, nil
	}
	var one domain.Quiz
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return []domain.Quiz{one}, nil
}
