// Package cmd implements the jwtgate CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gatekeep/go-jwt-gate/config"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	okFmt   = color.New(color.FgGreen, color.Bold).SprintFunc()
	errFmt  = color.New(color.FgRed, color.Bold).SprintFunc()
	dimFmt  = color.New(color.Faint).SprintFunc()
	codeFmt = color.New(color.FgYellow).SprintFunc()
)

// app carries what the commands share. Tests replace the streams and the
// HTTP client.
type app struct {
	configPath string
	out        io.Writer
	errOut     io.Writer
	httpClient *http.Client

	cfg    *config.Config
	logger *logrus.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "jwtgate",
		Short: "Bearer token authorization gate",
		Long: `jwtgate checks OAuth2 bearer tokens issued by an OpenID Connect provider.

It verifies the RS256 signature against the issuer's published key set,
checks issuer, audience and lifetime, rejects revoked tokens and enforces
the permission a route requires.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.Log, a.errOut)
			return nil
		},
	}

	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("JWTGATE_CONFIG"),
		"Path to the YAML configuration (env JWTGATE_CONFIG)")

	root.AddCommand(newVerifyCmd(a), newKeysCmd(a), newServeCmd(a))
	return root
}

// Execute runs the root command.
func Execute() error {
	a := &app{out: os.Stdout, errOut: os.Stderr}
	err := newRootCmd(a).Execute()
	if err != nil && !errors.Is(err, errRejected) {
		fmt.Fprintf(a.errOut, "%s %v\n", errFmt("error:"), err)
	}
	return err
}

func newLogger(cfg config.LogConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
