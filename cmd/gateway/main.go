package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/owaiken/gateway/internal/app"
	"github.com/owaiken/gateway/internal/config"

	log "github.com/sirupsen/logrus"
)

const defaultPort = 3000

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if errRun := run(ctx, os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// run parses flags and dispatches to serve, migrate or provision.
func run(ctx context.Context, args []string) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", defaultPort, "server port when the config file sets none")
	identityKey := fs.String("identity", "", "provision: auth provider subject of the new account")
	email := fs.String("email", "", "provision: contact email")
	tierName := fs.String("tier", "", "provision: initial tier (standard, pro, enterprise)")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	if errValidate := validatePort(*port); errValidate != nil {
		return errValidate
	}

	appCfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	if strings.TrimSpace(*cfgPath) != "" {
		appCfg.ConfigPath = config.ResolveConfigPath(*cfgPath)
	}

	switch command {
	case "serve":
		return app.RunServer(ctx, appCfg, *port)
	case "migrate":
		if errMigrate := app.Migrate(ctx, appCfg); errMigrate != nil {
			return errMigrate
		}
		log.Info("migrations applied")
		return nil
	case "provision":
		dsn, errDSN := config.LoadDatabaseDSN(config.ResolveConfigPath(appCfg.ConfigPath))
		if errDSN != nil {
			return errDSN
		}
		account, errProvision := app.ProvisionAccount(ctx, dsn, app.ProvisionRequest{
			IdentityKey: *identityKey,
			Email:       *email,
			Tier:        *tierName,
		})
		if errProvision != nil {
			return errProvision
		}
		log.WithFields(log.Fields{"account_id": account.ID, "tier": account.Tier}).Info("account provisioned")
		return nil
	default:
		return fmt.Errorf("unknown command %q (want serve, migrate or provision)", command)
	}
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
