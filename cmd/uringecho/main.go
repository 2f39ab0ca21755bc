// Command uringecho runs the single-threaded io_uring TCP echo server.
package main

import (
	"flag"
	"log"
	"strconv"

	"github.com/momentics/uringecho/internal/config"
	"github.com/momentics/uringecho/internal/server"
)

func main() {
	flag.Parse()

	port := config.DefaultPort
	if args := flag.Args(); len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil {
			log.Fatalf("uringecho: invalid port %q: %v", args[0], err)
		}
		port = uint16(v)
	}

	cfg := config.New(config.WithPort(port))
	logger := log.Default()

	srv, err := server.New(cfg, logger)
	if err != nil {
		log.Fatalf("uringecho: init: %v", err)
	}

	logger.Printf("uringecho: listening on 0.0.0.0:%d", cfg.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("uringecho: %v", err)
	}
}
