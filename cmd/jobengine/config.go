package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/jobengine/pkg/config"
	"github.com/dmitrymomot/jobengine/pkg/httpserver"
	"github.com/dmitrymomot/jobengine/pkg/jobqueue"
	"github.com/dmitrymomot/jobengine/pkg/redis"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development" yaml:"env"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"jobengine" yaml:"service_name"`

	HTTP  httpserver.Config `yaml:"http"`
	Redis redis.Config      `yaml:"redis"`
	Queue jobqueue.Config   `yaml:"jobqueue"`
}

func loadConfig() (appConfig, error) {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// The connection URL may carry credentials.
			if cfg.Redis.ConnectionURL != "" {
				cfg.Redis.ConnectionURL = "<redacted>"
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}
