package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vctt94/bisonbotkit/logging"

	"liaptui/pkg/server"
)

func main() {
	var (
		dbPath     string
		host       string
		port       int
		portFile   string
		seed       int64
		dwellMs    int
		debugLevel string
	)
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database file (created if missing)")
	flag.StringVar(&host, "host", "127.0.0.1", "Host to listen on")
	flag.IntVar(&port, "port", 0, "Port to listen on (0 for random free port)")
	flag.StringVar(&portFile, "portfile", "", "If set, write selected port to this file")
	flag.Int64Var(&seed, "seed", 0, "Deterministic RNG seed for deals (0 = random)")
	flag.IntVar(&dwellMs, "dwellms", 0, "Display-phase dwell time in milliseconds (0 = server default)")
	flag.StringVar(&debugLevel, "debuglevel", "info", "Logging level: trace, debug, info, warn, error")
	flag.Parse()

	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "liaptui.sqlite")
	}

	db, err := server.NewDatabase(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	logBackend, _ := logging.NewLogBackend(logging.LogConfig{DebugLevel: debugLevel})

	srv := server.NewServer(server.Config{
		DB:         db,
		LogBackend: logBackend,
		DwellTime:  time.Duration(dwellMs) * time.Millisecond,
		Seed:       seed,
	})
	defer srv.Close()

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to listen: %v\n", err)
		os.Exit(1)
	}

	if portFile != "" {
		_, p, _ := net.SplitHostPort(lis.Addr().String())
		_ = os.WriteFile(portFile, []byte(p), 0600)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.ServeWS)

	if err := http.Serve(lis, mux); err != nil {
		fmt.Fprintf(os.Stderr, "http serve error: %v\n", err)
		os.Exit(1)
	}
}
