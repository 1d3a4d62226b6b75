package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/specialistvlad/resgraph/internal/app"
	"github.com/specialistvlad/resgraph/internal/watcher"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// defaultEnvFile is read when present; an explicit -env-file must exist.
const defaultEnvFile = ".env"

// envDefaults maps flag names to the environment variables that provide
// their defaults.
var envDefaults = map[string]string{
	"log-level":        "RESGRAPH_LOG_LEVEL",
	"log-format":       "RESGRAPH_LOG_FORMAT",
	"healthcheck-port": "RESGRAPH_HEALTHCHECK_PORT",
	"reload-url":       "RESGRAPH_RELOAD_URL",
	"poll-interval":    "RESGRAPH_POLL_INTERVAL",
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Flags not given on the command line take their value from the process
// environment, then from the env file.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("resgraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
resgraph - Resolve a scene's object graph and keep it live while files change.

Usage:
  resgraph [options] [SCENE_PATH...]

Arguments:
  SCENE_PATH
    Path to a single .hcl scene file or a directory containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	sceneFlag := flagSet.String("scene", "", "Path to the scene file or directory.")
	sFlag := flagSet.String("s", "", "Path to the scene file or directory (shorthand).")
	watchFlag := flagSet.Bool("watch", false, "Keep running and reconcile the scene when files change.")
	pollFlag := flagSet.Duration("poll-interval", watcher.DefaultInterval, "How often watched files are checked for changes.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the health check and /reload websocket server. 0 is disabled.")
	reloadURLFlag := flagSet.String("reload-url", "", "socket.io server to notify about reloads, e.g. http://localhost:3000.")
	reloadNSFlag := flagSet.String("reload-namespace", "/", "socket.io namespace for reload events.")
	workersFlag := flagSet.Int("parse-workers", 0, "Number of scene files parsed concurrently. 0 uses the CPU count.")
	cacheFlag := flagSet.Int("cache-size", 0, "Number of parsed scene files kept in memory. 0 uses the default.")
	strictFlag := flagSet.Bool("strict", false, "Exit with an error if the initial load reports errors.")
	noColorFlag := flagSet.Bool("no-color", false, "Disable colored output.")
	envFileFlag := flagSet.String("env-file", "", "File with RESGRAPH_* defaults. Defaults to .env when present.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if err := applyEnvDefaults(flagSet, *envFileFlag); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	var paths []string
	if *sceneFlag != "" {
		paths = append(paths, *sceneFlag)
	} else if *sFlag != "" {
		paths = append(paths, *sFlag)
	}
	paths = append(paths, flagSet.Args()...)
	slog.Debug("Scene paths determined.", "paths", paths)

	if len(paths) == 0 {
		slog.Debug("No scene path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ScenePaths:      paths,
		Watch:           *watchFlag,
		PollInterval:    *pollFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		HealthcheckPort: *healthPortFlag,
		ReloadURL:       *reloadURLFlag,
		ReloadNamespace: *reloadNSFlag,
		ParseWorkers:    *workersFlag,
		CacheSize:       *cacheFlag,
		Strict:          *strictFlag,
		NoColor:         *noColorFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// applyEnvDefaults sets every flag that was not given explicitly from the
// environment. The process environment wins over the env file.
func applyEnvDefaults(flagSet *flag.FlagSet, envFile string) error {
	fileEnv, err := readEnvFile(envFile)
	if err != nil {
		return err
	}

	explicit := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	for name, key := range envDefaults {
		if explicit[name] {
			continue
		}
		value, ok := os.LookupEnv(key)
		if !ok {
			value, ok = fileEnv[key]
		}
		if !ok || value == "" {
			continue
		}
		if err := flagSet.Set(name, value); err != nil {
			return fmt.Errorf("invalid value %q for %s: %w", value, key, err)
		}
	}
	return nil
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		env, err := godotenv.Read(defaultEnvFile)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", defaultEnvFile, err)
		}
		return env, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return env, nil
}
