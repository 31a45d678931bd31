// cmd/preflight/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/hamed0406/pingkeeper/internal/config"
)

func main() {
	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.FromEnv()
	if err != nil {
		fail(err.Error())
	}
	ok("API_ADDR=" + cfg.Addr)

	switch cfg.StoreDriver {
	case config.DriverMemory:
		warn("STORE_DRIVER=memory: targets and history are lost on restart.")
	case config.DriverSQLite:
		ok("STORE_DRIVER=sqlite file " + cfg.DatabaseURL)
	case config.DriverPostgres:
		if !strings.HasPrefix(cfg.DatabaseURL, "postgres://") && !strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
			warn("DATABASE_URL does not look like a postgres:// URL.")
		} else {
			ok("STORE_DRIVER=postgres, DATABASE_URL present")
		}
	}

	if cfg.CheckTimeout >= cfg.CheckInterval {
		warn(fmt.Sprintf("CHECK_TIMEOUT (%s) >= CHECK_INTERVAL (%s); runs will overlap.", cfg.CheckTimeout, cfg.CheckInterval))
	}
	ok("CHECK_INTERVAL=" + cfg.CheckInterval.String())

	if raw := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); strings.Contains(raw, " ") {
		warn("ALLOWED_ORIGINS contains spaces; use comma-separated with no spaces, e.g. a,b")
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		warn("ALLOWED_ORIGINS=* allows any browser origin.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}

	if cfg.PingRPM == 0 {
		warn("PING_RPM=0: /api/ping is not rate limited.")
	}

	ok("preflight passed")
}
