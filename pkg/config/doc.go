// Package config loads typed configuration for the job engine.
//
// Environment configuration is parsed into tagged structs with
// github.com/caarlos0/env/v11. A .env file in the working directory is read
// once via github.com/joho/godotenv before the first parse, and every struct
// type is parsed at most once per process:
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Declarative documents, such as the queue definitions the engine creates
// at start-up, are decoded from YAML with LoadYAMLFile. Unknown fields are
// rejected so typos surface as errors rather than silently ignored keys.
package config
