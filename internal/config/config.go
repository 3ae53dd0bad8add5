// Package config loads server settings from a .env file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/cityshare/cityshare/internal/blob"
)

// Storage backends.
const (
	StorageDisk  = "disk"
	StorageMinIO = "minio"
)

// Config holds everything the server needs to start.
type Config struct {
	DBPath    string
	Addr      string
	LogPath   string
	JWTSecret string

	Storage   string
	UploadDir string
	MinIO     blob.MinIOConfig

	// RateLimit is the sustained request rate per client on the auth and
	// upload endpoints, in requests per second.
	RateLimit float64
	RateBurst int

	// ListingBase, if positive, is stored as the listing number base when
	// a new database is created.
	ListingBase int64
}

// EnvFile is read by Load when present.
const EnvFile = ".env"

// Load reads EnvFile (if any), then the process environment, then args.
// It returns flag.ErrHelp if help was requested.
func Load(args []string, usageOut io.Writer) (*Config, error) {
	file, err := readEnvFile(EnvFile)
	if err != nil {
		return nil, err
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}
	return Parse(args, lookup, usageOut)
}

func readEnvFile(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return values, nil
}

// Parse builds a Config from lookup (environment) and args (flags).
func Parse(args []string, lookup func(string) (string, bool), usageOut io.Writer) (*Config, error) {
	env := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{}
	var errs []error

	useSSL, err := strconv.ParseBool(env("CITYSHARE_MINIO_USE_SSL", "false"))
	if err != nil {
		errs = append(errs, fmt.Errorf("CITYSHARE_MINIO_USE_SSL: %w", err))
	}
	rateLimit, err := strconv.ParseFloat(env("CITYSHARE_RATE_LIMIT", "1"), 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("CITYSHARE_RATE_LIMIT: %w", err))
	}
	rateBurst, err := strconv.Atoi(env("CITYSHARE_RATE_BURST", "10"))
	if err != nil {
		errs = append(errs, fmt.Errorf("CITYSHARE_RATE_BURST: %w", err))
	}
	listingBase, err := strconv.ParseInt(env("CITYSHARE_LISTING_BASE", "0"), 10, 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("CITYSHARE_LISTING_BASE: %w", err))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	flags := flag.NewFlagSet("cityshare", flag.ContinueOnError)
	flags.SetOutput(usageOut)

	dbDefault := env("CITYSHARE_DB", "cityshare.sqlite3")
	flags.StringVar(&cfg.DBPath, "db", dbDefault, "")
	flags.StringVar(&cfg.DBPath, "d", dbDefault, "")

	addrDefault := env("CITYSHARE_ADDR", ":8080")
	flags.StringVar(&cfg.Addr, "addr", addrDefault, "")
	flags.StringVar(&cfg.Addr, "a", addrDefault, "")

	logDefault := env("CITYSHARE_LOG", "")
	flags.StringVar(&cfg.LogPath, "log", logDefault, "")
	flags.StringVar(&cfg.LogPath, "l", logDefault, "")

	storageDefault := env("CITYSHARE_STORAGE", StorageDisk)
	flags.StringVar(&cfg.Storage, "storage", storageDefault, "")
	flags.StringVar(&cfg.Storage, "s", storageDefault, "")

	flags.StringVar(&cfg.UploadDir, "uploads", env("CITYSHARE_UPLOAD_DIR", "uploads"), "")
	flags.StringVar(&cfg.JWTSecret, "jwt-secret", env("CITYSHARE_JWT_SECRET", ""), "")
	flags.Int64Var(&cfg.ListingBase, "listing-base", listingBase, "")

	cfg.MinIO = blob.MinIOConfig{
		Endpoint:  env("CITYSHARE_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey: env("CITYSHARE_MINIO_ACCESS_KEY", ""),
		SecretKey: env("CITYSHARE_MINIO_SECRET_KEY", ""),
		Bucket:    env("CITYSHARE_MINIO_BUCKET", "cityshare"),
		UseSSL:    useSSL,
		PublicURL: env("CITYSHARE_MINIO_PUBLIC_URL", ""),
	}
	cfg.RateLimit = rateLimit
	cfg.RateBurst = rateBurst

	flags.Usage = func() {
		fmt.Fprint(usageOut, `Usage: cityshare [serve|init] [flags]

Flags:
  -d, -db <path>          SQLite database path (default: cityshare.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -s, -storage <backend>  upload storage: disk or minio (default: disk)
  -uploads <dir>          upload directory for disk storage (default: uploads)
  -jwt-secret <secret>    token signing key (default: generated and stored in the database)
  -listing-base <n>       listing numbers start after n in a new database (default: 1000)
  -h, -help               show this help and exit

Every flag can also be set with a CITYSHARE_* environment variable or in .env.
`)
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with c.
func (c *Config) Validate() error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	switch c.Storage {
	case StorageDisk:
		if c.UploadDir == "" {
			errs = append(errs, errors.New("upload directory is required for disk storage"))
		}
	case StorageMinIO:
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			errs = append(errs, errors.New("minio storage needs an endpoint and a bucket"))
		}
		if c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
			errs = append(errs, errors.New("minio storage needs an access key and a secret key"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, errors.New("rate limit must be positive"))
	}
	if c.ListingBase < 0 {
		errs = append(errs, errors.New("listing base must not be negative"))
	}
	if c.RateBurst < 1 {
		errs = append(errs, errors.New("rate burst must be at least 1"))
	}
	return errors.Join(errs...)
}
