package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"vasilala/config"
	"vasilala/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis connection",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("redis: %s:%s db %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := db.ConnectRedis(cfg); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer db.CloseRedis()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.RedisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("ping failed: %v", err)
		}
		fmt.Println("redis connection ok")
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
