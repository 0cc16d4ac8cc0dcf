// Command scanledger ingests nmap output into the knowledge sinks: an
// append-only JSONL log and a SQLite records table upserted by content
// address. It also runs the practice target service used to produce scan
// output locally.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
