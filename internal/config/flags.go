package config

import (
	"flag"
	"os"
	"time"

	"github.com/akaplins/paperkeep/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   path of the local SQLite database (default from Config)
//	-f string   directory for downloaded attachments (default from Config)
//	-i int      background sync interval in seconds (default from Config)
//	-p int      max parallel remote operations per cycle (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-f", "-i", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path of the local database file")
	fs.StringVar(&cfg.AttachmentDir, "f", cfg.AttachmentDir, "directory for downloaded attachments")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "background sync interval (in seconds)")
	fs.IntVar(&cfg.MaxParallelOps, "p", cfg.MaxParallelOps, "max parallel remote operations per cycle")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
