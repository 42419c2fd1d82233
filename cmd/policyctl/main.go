// Package main provides a tool to inspect and apply capability policies.
//
// The server applies its active policy automatically at startup; this
// tool exists for checking what a policy file grants before deploying
// it, and for reapplying a policy to an offline catalog.
//
// Usage:
//
//	go run ./cmd/policyctl show
//	go run ./cmd/policyctl show --policy-file ./policy.json
//	go run ./cmd/policyctl apply --data-dir ~/stacks --policy-file ./policy.json
package main

import (
	"context"
	"encoding/json/v2"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stacksapp/stacks-server/internal/policy"
	"github.com/stacksapp/stacks-server/internal/store/sqlite"
)

var (
	dataDir    = flag.String("data-dir", "", "Server data directory (default: $STACKS_DATA_DIR or ~/stacks)")
	policyFile = flag.String("policy-file", "", "Policy document to use (default: built-in policy)")
)

func main() {
	flag.Parse()

	switch flag.Arg(0) {
	case "show":
		show()
	case "apply":
		apply()
	default:
		fmt.Fprintln(os.Stderr, "usage: policyctl [flags] show|apply")
		os.Exit(2)
	}
}

// activeDocument resolves the document the flags select, without
// needing a database.
func activeDocument() (policy.Document, error) {
	if *policyFile == "" {
		return policy.Default(), nil
	}
	return policy.Load(*policyFile)
}

func show() {
	doc, err := activeDocument()
	if err != nil {
		log.Fatalf("Failed to load policy: %v", err)
	}

	out, err := json.Marshal(doc, json.Deterministic(true))
	if err != nil {
		log.Fatalf("Failed to render policy: %v", err)
	}
	fmt.Println(string(out))
}

func apply() {
	dir := *dataDir
	if dir == "" {
		dir = os.Getenv("STACKS_DATA_DIR")
	}
	if dir == "" {
		dir = os.ExpandEnv("$HOME/stacks")
	}

	dbPath := filepath.Join(dir, "catalog.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	st, err := sqlite.Open(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer st.Close()

	manager := policy.NewManager(st, logger, *policyFile)
	if err := manager.ApplyActive(context.Background()); err != nil {
		log.Fatalf("Failed to apply policy: %v", err)
	}

	doc, _ := manager.Active()
	fmt.Printf("Applied policy version %d (%d groups)\n", doc.Version, len(doc.Groups))
}
