/*
main.go - Application entry point

PURPOSE:
  Runs the standing-orders command line. All wiring lives in cli/.

EXAMPLES:
  # HTTP API plus the daily trigger at 06:00 Asia/Tokyo
  ./standing-orders serve --db ./data/orders.db

  # One cycle for a given day
  ./standing-orders run --today 2025-03-03

  # Bulk import
  ./standing-orders import ./templates.json

  # Durable trigger via Temporal
  ./standing-orders worker --config ./config.yaml
  ./standing-orders schedule --config ./config.yaml

SEE ALSO:
  - cli/root.go: Commands and global flags
  - config/config.go: Configuration file
*/
package main

import (
	"context"
	"log"
	"os"

	"github.com/warp/standing-orders/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
