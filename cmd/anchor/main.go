// anchor is the command-line surface for agent identities, signed documents
// and the trust store.
//
// Exit codes across all subcommands:
//
//	0 = success / verification passed
//	1 = verification failed
//	2 = usage or runtime error
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Mindburn-Labs/anchor/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	cfg := config.Load()
	setupLogging(stderr, cfg.LogLevel)

	switch args[1] {
	case "create-identity":
		return runCreateIdentityCmd(cfg, args[2:], stdout, stderr)
	case "rotate":
		return runRotateCmd(cfg, args[2:], stdout, stderr)
	case "card":
		return runCardCmd(args[2:], stdout, stderr)
	case "dns-record":
		return runDNSRecordCmd(args[2:], stdout, stderr)
	case "sign":
		return runSignCmd(cfg, args[2:], stdout, stderr)
	case "update":
		return runUpdateCmd(cfg, args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(cfg, args[2:], stdout, stderr)
	case "trust":
		if len(args) < 3 {
			_, _ = fmt.Fprintln(stderr, "Usage: anchor trust <add|remove|list>")
			return 2
		}
		return runTrustCmd(cfg, args[2:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func setupLogging(stderr io.Writer, level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: lvl})))
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `anchor - agent identity, signing and trust

Usage:
  anchor create-identity --name NAME [--algorithm ALG] [--domain DOMAIN] --out FILE
  anchor rotate          --identity FILE [--algorithm ALG]
  anchor card            --identity FILE
  anchor dns-record      --identity FILE
  anchor sign            --identity FILE --type TYPE --content FILE [--out FILE]
  anchor update          --identity FILE --id DOC_ID --content FILE [--out FILE]
  anchor verify          --document FILE [--json]
  anchor trust add       --card FILE
  anchor trust remove    --agent-id ID
  anchor trust list

The private key password is read from ANCHOR_PRIVATE_KEY_PASSWORD.`)
}
