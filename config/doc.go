// Package config loads service configuration with viper.
//
// Values come from defaults, a YAML file found next to the binary,
// an optional dotenv file loaded with godotenv, and the process
// environment. Nested keys map to upper-snake variables, so
// session.idle_timeout is overridden by SESSION_IDLE_TIMEOUT.
//
//	var cfg AppConfig
//	files, err := config.Load("voxrelay", &cfg, config.WithDefaults(defaults))
package config
