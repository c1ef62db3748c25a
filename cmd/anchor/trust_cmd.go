package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/anchor/pkg/config"
	"github.com/Mindburn-Labs/anchor/pkg/identity"
	"github.com/Mindburn-Labs/anchor/pkg/trust"
)

func runTrustCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	trustStore, err := trust.NewStore(cfg.TrustStoreRoot)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	switch args[0] {
	case "add":
		return runTrustAdd(trustStore, args[1:], stdout, stderr)
	case "remove":
		return runTrustRemove(trustStore, args[1:], stdout, stderr)
	case "list":
		return runTrustList(trustStore, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown trust subcommand: %s\n", args[0])
		return 2
	}
}

func runTrustAdd(trustStore *trust.Store, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("trust add", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var cardPath string
	cmd.StringVar(&cardPath, "card", "", "Agent card file (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cardPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --card is required")
		return 2
	}

	raw, err := os.ReadFile(cardPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	var card identity.Card
	if err := json.Unmarshal(raw, &card); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: card parse: %v\n", err)
		return 2
	}
	if err := trustStore.TrustCard(card); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "Trusted agent %s (%s)\n", card.ID, card.Name)
	return 0
}

func runTrustRemove(trustStore *trust.Store, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("trust remove", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var agentID string
	cmd.StringVar(&agentID, "agent-id", "", "Agent id to untrust (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if agentID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --agent-id is required")
		return 2
	}
	if err := trustStore.Untrust(agentID); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "Untrusted agent %s\n", agentID)
	return 0
}

func runTrustList(trustStore *trust.Store, stdout, stderr io.Writer) int {
	ids, err := trustStore.List()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if len(ids) == 0 {
		_, _ = fmt.Fprintln(stdout, "No trusted agents")
		return 0
	}
	for _, id := range ids {
		rec, err := trustStore.Get(id)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "%s  %s  key=%s\n", rec.AgentID, rec.Name, rec.CurrentKeyHash)
	}
	return 0
}
