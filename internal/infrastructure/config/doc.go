// Package config handles loading and validating graypm configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling, including paths derived from the home directory
//
// Configuration is loaded once at startup into an immutable value and passed
// into constructors. Sensitive values (MQTT password, InfluxDB token) should be
// set via environment variables.
//
// Usage:
//
//	cfg, err := config.LoadOrDefault(path, config.DefaultHome())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Path)
package config
