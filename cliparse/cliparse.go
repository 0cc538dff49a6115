package cliparse

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/danielhkuo/tallywatch/db"
	"github.com/danielhkuo/tallywatch/models"
)

const (
	DefaultBaseURL = "https://resultat.val.se/resultatfiler/"
	DefaultDBFile  = "tallywatch.db"
)

type Config struct {
	BaseURL         string
	CacheDir        string
	Election        string
	Occasion        string
	Follow          bool
	Delay           time.Duration
	Level           int
	CollectionLevel int
	Wednesday       bool
	Port            int
	DatabaseURL     string
	DatabaseType    string
	MetadataPath    string
	FetchWorkers    int
	LogLevel        string
}

// defaults returns a viper instance reading environment variables, with the
// built-in value of every setting.
func defaults() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("results_url", DefaultBaseURL)
	v.SetDefault("cache_dir", "results")
	v.SetDefault("election", models.ElectionRiksdag)
	v.SetDefault("occasion", models.OccasionFinal)
	v.SetDefault("follow", false)
	v.SetDefault("delay", 30)
	v.SetDefault("level", 1)
	v.SetDefault("collection_level", -1)
	v.SetDefault("wednesday", false)
	v.SetDefault("port", 0)
	v.SetDefault("database_url", "")
	v.SetDefault("database_type", db.TypeSQLite)
	v.SetDefault("metadata_path", filepath.Join("data", "deltagande-partier.csv"))
	v.SetDefault("fetch_workers", 8)
	v.SetDefault("log_level", "info")

	return v
}

// ParseFlags reads the command line, falling back to environment variables
// and then to defaults for anything not given. The optional positional
// argument is the counting occasion.
func ParseFlags(args []string) (Config, error) {
	var cfg Config
	var delaySeconds int

	fs := flag.NewFlagSet("tallywatch", flag.ContinueOnError)

	// Source and cache
	fs.StringVar(&cfg.BaseURL, "u", "", "Base URL of the result files")
	fs.StringVar(&cfg.CacheDir, "c", "", "Directory for cached result files")
	fs.StringVar(&cfg.MetadataPath, "m", "", "Participating parties CSV")
	fs.IntVar(&cfg.FetchWorkers, "workers", 0, "Parallel downloads")

	// Analysis
	fs.StringVar(&cfg.Election, "e", "", "Election type (RD, RF or KF)")
	fs.IntVar(&cfg.Level, "l", 0, "Region level of the votes table, 0-3, -1 to skip")
	fs.IntVar(&cfg.CollectionLevel, "s", 0, "Region level of the collection district table, -1 to skip")
	fs.BoolVar(&cfg.Wednesday, "w", false, "Add the 2018 Wednesday count to the totals")

	// Polling
	fs.BoolVar(&cfg.Follow, "f", false, "Keep refreshing")
	fs.IntVar(&delaySeconds, "delay", 0, "Seconds between refreshes")

	// Service
	fs.IntVar(&cfg.Port, "p", 0, "HTTP API port, 0 to disable")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL or sqlite file")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Fall back to environment variables
	v := defaults()
	if !set["u"] {
		cfg.BaseURL = v.GetString("results_url")
	}
	if !set["c"] {
		cfg.CacheDir = v.GetString("cache_dir")
	}
	if !set["m"] {
		cfg.MetadataPath = v.GetString("metadata_path")
	}
	if !set["workers"] {
		cfg.FetchWorkers = v.GetInt("fetch_workers")
	}
	if !set["e"] {
		cfg.Election = v.GetString("election")
	}
	if !set["l"] {
		cfg.Level = v.GetInt("level")
	}
	if !set["s"] {
		cfg.CollectionLevel = v.GetInt("collection_level")
	}
	if !set["w"] {
		cfg.Wednesday = v.GetBool("wednesday")
	}
	if !set["f"] {
		cfg.Follow = v.GetBool("follow")
	}
	if !set["delay"] {
		delaySeconds = v.GetInt("delay")
	}
	if !set["p"] {
		cfg.Port = v.GetInt("port")
	}
	if !set["d"] {
		cfg.DatabaseURL = v.GetString("database_url")
	}
	if !set["t"] {
		cfg.DatabaseType = v.GetString("database_type")
	}
	if !set["log-level"] {
		cfg.LogLevel = v.GetString("log_level")
	}

	switch fs.NArg() {
	case 0:
		cfg.Occasion = v.GetString("occasion")
	case 1:
		cfg.Occasion = fs.Arg(0)
	default:
		return Config{}, fmt.Errorf("expected at most one counting occasion, got %q", fs.Args())
	}

	cfg.Delay = time.Duration(delaySeconds) * time.Second
	cfg.Election = strings.ToUpper(cfg.Election)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("invalid results URL %q", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	cfg.BaseURL = base.String()

	switch cfg.Election {
	case models.ElectionRiksdag, models.ElectionRegion, models.ElectionMunicipal:
	default:
		return fmt.Errorf("unknown election type %q (use RD, RF or KF)", cfg.Election)
	}

	switch cfg.Occasion {
	case models.OccasionPreliminary, models.OccasionFinal:
	default:
		return fmt.Errorf("unknown counting occasion %q (use %s or %s)", cfg.Occasion, models.OccasionPreliminary, models.OccasionFinal)
	}

	if cfg.Level < -1 || cfg.Level > 3 {
		return errors.New("level must be between -1 and 3")
	}
	if cfg.CollectionLevel < -1 || cfg.CollectionLevel > 3 {
		return errors.New("collection district level must be between -1 and 3")
	}
	if cfg.Follow && cfg.Delay <= 0 {
		return errors.New("delay must be positive when following")
	}
	if cfg.FetchWorkers < 1 {
		return errors.New("workers must be at least 1")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return errors.New("invalid port")
	}
	if cfg.CacheDir == "" {
		return errors.New("cache directory required (use -c or CACHE_DIR env)")
	}

	switch cfg.DatabaseType {
	case db.TypeSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = filepath.Join(cfg.CacheDir, DefaultDBFile)
		}
	case db.TypePostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("database URL required for postgres (use -d or DATABASE_URL env)")
		}
	default:
		return fmt.Errorf("unknown database type %q (use sqlite or postgres)", cfg.DatabaseType)
	}

	return nil
}
