package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cabview.railmap.org/internal/appconf"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	coreApp, err := BuildApplication(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	srv, api := CreateServer(coreApp, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx, srv, coreApp, api); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers the configuration: defaults, then the config file, then
// .env files and CABVIEW_* variables, then flags given on the command line.
func loadConfig(args []string, getenv func(string) string) (appconf.Config, error) {
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "path to a JSON config file")
		envFiles   = fs.String("env-file", ".env", "comma separated .env files to load")
		port       = fs.Int("port", appconf.DefaultPort, "API server port")
		env        = fs.String("env", "development", "environment (development|test|production)")
		apiKeys    = fs.String("api-keys", "", "comma separated operator API keys")
		verbose    = fs.Bool("verbose", false, "enable debug logging")
		rateLimit  = fs.Int("rate-limit", appconf.DefaultRateLimit, "requests per second per client")
		dbPath     = fs.String("db-path", appconf.DefaultDBPath, "SQLite database path")
		threshold  = fs.Float64("click-threshold", appconf.DefaultClickThresholdMeters, "click-to-station threshold in meters")
		spatial    = fs.Bool("spatial-index", false, "use the R-tree for nearest-station lookups")
		linesCSV   = fs.String("reference-lines", "", "reference lines CSV")
		stationCSV = fs.String("reference-stations", "", "reference stations CSV")
		gtfsPath   = fs.String("reference-gtfs", "", "GTFS zip to load reference lines and stations from")
		origins    = fs.String("allowed-origins", "", "comma separated origins allowed to open the player websocket")
	)
	if err := fs.Parse(args); err != nil {
		return appconf.Config{}, err
	}

	cfg := appconf.Default()
	if *configPath != "" {
		fc, err := appconf.LoadFromFile(*configPath)
		if err != nil {
			return appconf.Config{}, err
		}
		cfg = fc.Apply(cfg)
	}

	if err := appconf.LoadDotEnv(appconf.SplitList(*envFiles)...); err != nil {
		return appconf.Config{}, err
	}
	cfg, err := appconf.ApplyEnv(cfg, getenv)
	if err != nil {
		return appconf.Config{}, err
	}

	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "env":
			e, err := appconf.ParseEnvironment(*env)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Env = e
		case "api-keys":
			cfg.ApiKeys = ParseAPIKeys(*apiKeys)
		case "verbose":
			cfg.Verbose = *verbose
		case "rate-limit":
			cfg.RateLimit = *rateLimit
		case "db-path":
			cfg.DBPath = *dbPath
		case "click-threshold":
			cfg.ClickThresholdMeters = *threshold
		case "spatial-index":
			cfg.SpatialIndex = *spatial
		case "reference-lines":
			cfg.ReferenceLinesCSV = *linesCSV
		case "reference-stations":
			cfg.ReferenceStationsCSV = *stationCSV
		case "reference-gtfs":
			cfg.ReferenceGTFS = *gtfsPath
		case "allowed-origins":
			cfg.AllowedOrigins = appconf.SplitList(*origins)
		}
	})
	if flagErr != nil {
		return appconf.Config{}, flagErr
	}
	return cfg, nil
}
