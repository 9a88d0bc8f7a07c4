package bootstrap

import (
	"github.com/kbukum/voxrelay/config"
)

// Config is the constraint for application configuration types. Any
// struct embedding config.ServiceConfig satisfies GetServiceConfig
// through the promoted method.
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Session session.Config `yaml:"session" mapstructure:"session"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
