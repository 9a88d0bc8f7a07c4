// Package validation checks configuration and request input.
//
// Struct tags cover configuration sections, with field names reported by
// their config key:
//
//	type Config struct {
//	    Mode string `mapstructure:"mode" validate:"oneof=batch streaming"`
//	}
//	err := validation.Validate(cfg)
//
// Cross-field rules use the collecting Validator:
//
//	v := validation.New()
//	v.Custom(cfg.Whisper.URL != "" || cfg.Mode == "streaming", "whisper.url", "is required in batch mode")
//	err := v.Validate()
package validation
