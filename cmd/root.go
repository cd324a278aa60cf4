package cmd

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"clinica-medicos/config"
	"clinica-medicos/utils"
)

var (
	version = "dev"
	cfgFile string
	cfg     *config.Config
	logger  = log.New(os.Stdout, "MEDICOS: ", log.LstdFlags|log.Lshortfile)
)

var rootCmd = &cobra.Command{
	Use:     "medicos",
	Short:   "Doctor registry service for the clinic",
	Long:    `Registers, lists, updates and removes doctor records (specialty, category, insurance plans and attendance days).`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (yaml, json or toml); environment variables take precedence")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connectRedis retries because Redis often starts after the service in compose.
func connectRedis() (utils.RedisClient, error) {
	var (
		client utils.RedisClient
		err    error
	)
	maxRetries := 5
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		client, err = utils.NewRedisClient(cfg.RedisHost, cfg.RedisPassword)
		if err == nil {
			return client, nil
		}
		logger.Printf("Attempt %d: Failed to connect to Redis: %v", i+1, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, fmt.Errorf("failed to initialize Redis after %d attempts: %w", maxRetries, err)
}
