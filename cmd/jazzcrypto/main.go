package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"jazz-tools/jazz-crypto/config"
	"jazz-tools/jazz-crypto/entrypoint"
)

const loggerKey = "logger"

func main() {
	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newApp builds the CLI reading input from in and writing results to out.
// Separated from main for tests.
func newApp(in io.Reader, out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "jazzcrypto",
		Usage:     "jazz-crypto primitives engine",
		Reader:    in,
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    config.ConfigPathFlag,
				Usage:   "config file (built-in defaults when unset)",
				Aliases: []string{"c"},
			},
			&cli.StringFlag{
				Name:  config.LogLevelFlag,
				Usage: "log level (debug, info, warn, error)",
				Value: "warn",
			},
		},
		Before: func(c *cli.Context) error {
			logger, err := newLogger(c.String(config.LogLevelFlag), errOut)
			if err != nil {
				return err
			}
			c.App.Metadata = map[string]interface{}{loggerKey: logger}
			return nil
		},
		After: func(c *cli.Context) error {
			if logger := loggerFrom(c); logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			keygenCommand(),
			agentCommand(),
			deriveCommand(),
			encryptCommand(),
			decryptCommand(),
			hashCommand(),
			signCommand(),
			verifyCommand(),
			valueCommand(),
			algorithmsCommand(),
			serveCommand(),
		},
	}
}

func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

func loggerFrom(c *cli.Context) *zap.Logger {
	if logger, ok := c.App.Metadata[loggerKey].(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// loadConfig reads the --config file, or the defaults when none is given.
func loadConfig(c *cli.Context) (config.Config, error) {
	path := c.String(config.ConfigPathFlag)
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

// initialize prepares the entry-point surface for one-shot commands.
func initialize(c *cli.Context) (config.Config, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return cfg, err
	}
	st := entrypoint.InitializeWith(entrypoint.Options{Config: &cfg, Logger: loggerFrom(c)})
	if st != entrypoint.StatusOK {
		return cfg, fmt.Errorf("initialize: %s", st)
	}
	return cfg, nil
}
