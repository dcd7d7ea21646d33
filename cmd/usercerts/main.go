package main

import (
	"os"

	"github.com/vocdoni/gofirma/usercerts/internal/cli"
	"github.com/vocdoni/gofirma/usercerts/internal/crypto/systemstore"
)

func main() {
	// The NSS backend re-executes this binary to scan a database out of process.
	if len(os.Args) > 1 && os.Args[1] == systemstore.NSSWorkerFlag {
		os.Exit(systemstore.RunNSSScanWorker(os.Args[2:]))
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
