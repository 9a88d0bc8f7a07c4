// Command voxrelay accepts microphone audio over websockets, transcribes
// each recording and relays the results back to the client.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/voxrelay/bootstrap"
	"github.com/kbukum/voxrelay/config"
	"github.com/kbukum/voxrelay/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run() error {
	configFile := flag.String("config", "", "path to config.yml (searched in the standard locations when empty)")
	envFile := flag.String("env", "", "path to a .env file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(serviceName, version.Get().String())
		return nil
	}

	var opts []config.Option
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	if *envFile != "" {
		opts = append(opts, config.WithEnvFile(*envFile))
	}
	cfg, err := loadConfig(opts...)
	if err != nil {
		return err
	}

	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	if err := registerComponents(app); err != nil {
		return fmt.Errorf("wire components: %w", err)
	}
	return app.Run(context.Background())
}
