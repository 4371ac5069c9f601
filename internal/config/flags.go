package config

import (
	"flag"
	"io"
	"time"

	"github.com/pliu/dmchat/internal/flagx"
)

// parseFlags overlays command-line flags:
//
//	-a string   HTTP bind address
//	-t string   database driver (sqlite3, sqlite, postgres, pgx)
//	-d string   database DSN
//	-s string   JWT secret key
//	-v int      token validity, hours
//	-i bool     use the incremental sidebar index
//	-l string   log level
//	-u, -p      S3 access key / secret key
//	-b, -g, -e  S3 bucket / region / base endpoint
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-t", "-d", "-s", "-v", "-i", "-l", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.EndpointAddr, "a", cfg.EndpointAddr, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDriver, "t", cfg.DatabaseDriver, "database driver")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	validity := fs.Int("v", int(cfg.TokenValidityDuration.Hours()), "token validity (in hours)")
	fs.BoolVar(&cfg.SidebarIndex, "i", cfg.SidebarIndex, "use incremental sidebar index")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.S3AccessKey, "u", cfg.S3AccessKey, "S3 access key")
	fs.StringVar(&cfg.S3SecretKey, "p", cfg.S3SecretKey, "S3 secret key")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "v" {
			cfg.TokenValidityDuration = time.Duration(*validity) * time.Hour
		}
	})
	return nil
}
