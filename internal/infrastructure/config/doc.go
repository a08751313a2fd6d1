// Package config handles loading and validating cash card service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with CASHCARD_* environment variables
//   - Validation of required fields
//
// Secrets (JWT secret, Postgres DSN, MQTT and InfluxDB credentials) should be
// supplied through the environment rather than the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
