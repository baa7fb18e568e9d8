package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/dkazarov/fitplan/internal/catalog"
	"github.com/dkazarov/fitplan/internal/config"
	"github.com/dkazarov/fitplan/internal/db"
	"github.com/dkazarov/fitplan/internal/journal"
	"github.com/dkazarov/fitplan/internal/remote"
	"github.com/dkazarov/fitplan/internal/rollover"
	"github.com/dkazarov/fitplan/internal/search"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// engine bundles the wired components the CLI commands operate on.
type engine struct {
	cfg      *config.Config
	catalog  *catalog.Store
	coord    *search.Coordinator
	journal  *journal.Store
	rollover *rollover.Transactioner
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return true
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// newLogger builds the process logger. Quiet by default so JSON output stays
// clean; FITPLAN_DEBUG enables development logging on stderr.
func newLogger() *zap.Logger {
	if os.Getenv("FITPLAN_DEBUG") == "" {
		return zap.NewNop()
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func main() {
	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, ".fitplan")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	db.ConfigurePool(database, cfg)

	log := newLogger()
	defer log.Sync()

	timeout := time.Duration(cfg.RemoteTimeoutMS) * time.Millisecond
	provider := remote.NewClient(cfg.RemoteBaseURL, cfg.RemotePageSize, timeout, log)

	cache, err := search.NewCache(cfg.SearchCacheSize, cfg.PrefixCacheSize, cfg.NameCacheSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to build search cache: %v\n", err)
		os.Exit(1)
	}

	store := catalog.New(database)
	eng := &engine{
		cfg:     cfg,
		catalog: store,
		coord: search.NewCoordinator(cache, store, provider, search.Options{
			RemoteTimeout: timeout,
			ResultCap:     cfg.ResultCap,
			LocalLimit:    cfg.LocalPrefixLimit,
		}, log),
		journal:  journal.New(database),
		rollover: rollover.New(database, log),
	}

	app := newCLIApp(eng)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
