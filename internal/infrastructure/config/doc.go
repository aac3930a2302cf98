// Package config handles loading and validating Gray Logic Node configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling, including per-sensor defaults
//
// Security Considerations:
//   - Broker credentials should be set via GRAYNODE_MQTT_USERNAME / GRAYNODE_MQTT_PASSWORD
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Node.ID)
//
// The loaded Config is read once at startup and never mutated afterwards.
package config
