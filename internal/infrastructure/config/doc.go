// Package config handles loading and validating the bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files or the legacy config.ini layout
//   - Overriding with environment variables
//   - Typed section/key lookups (string, int, float, bool, list, duration)
//   - Validation of required and empty fields
//   - Default value handling
//
// Security Considerations:
//   - The printer API key and broker password should be set via environment variables
//   - The config file should have restricted permissions (0600)
//   - String() redacts secrets, so the configuration can be logged at startup
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	addr, _ := cfg.Get(config.SectionPrinter, "ip_address")
package config
