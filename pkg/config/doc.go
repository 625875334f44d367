// Package config loads typed configuration from environment variables.
//
// It combines github.com/joho/godotenv for .env files with
// github.com/caarlos0/env/v11 for struct parsing:
//
//	var cfg session.Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// Each config type is parsed once and cached. Structs that implement
// Validator are validated right after parsing; a failure is reported as
// ErrInvalidConfig joined with the validation error, and nothing is cached,
// so a corrected environment can be loaded again.
//
// LoadEnv reads explicit .env files without overriding variables that are
// already present in the process environment. ForceReload and ResetCache are
// meant for tests.
package config
