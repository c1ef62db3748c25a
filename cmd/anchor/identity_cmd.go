package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/anchor/pkg/config"
	"github.com/Mindburn-Labs/anchor/pkg/contracts"
	"github.com/Mindburn-Labs/anchor/pkg/dnsanchor"
	"github.com/Mindburn-Labs/anchor/pkg/identity"
)

func loadIdentity(path string) (*identity.Agent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity read: %w", err)
	}
	var agent identity.Agent
	if err := json.Unmarshal(raw, &agent); err != nil {
		return nil, fmt.Errorf("identity parse: %w", err)
	}
	return &agent, nil
}

func saveIdentity(path string, agent *identity.Agent) error {
	raw, err := json.MarshalIndent(agent, "", "  ")
	if err != nil {
		return err
	}
	// 0600: the file contains the encrypted private key.
	return os.WriteFile(path, raw, 0o600)
}

func requirePassword(stderr io.Writer) (string, bool) {
	pw, ok := config.PrivateKeyPassword()
	if !ok {
		_, _ = fmt.Fprintf(stderr, "Error: %s is not set\n", config.EnvPrivateKeyPassword)
	}
	return pw, ok
}

func runCreateIdentityCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("create-identity", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var name, algorithm, domain, out string
	cmd.StringVar(&name, "name", "", "Agent name (REQUIRED)")
	cmd.StringVar(&algorithm, "algorithm", "", "Signature algorithm (default from config)")
	cmd.StringVar(&domain, "domain", "", "Domain for DNS anchoring")
	cmd.StringVar(&out, "out", "", "Identity file to write (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if name == "" || out == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --name and --out are required")
		return 2
	}
	pw, ok := requirePassword(stderr)
	if !ok {
		return 2
	}

	alg := cfg.DefaultAlgorithm
	if algorithm != "" {
		alg = contracts.Algorithm(algorithm)
	}
	agent, err := identity.Create(identity.CreateParams{
		Name:      name,
		Algorithm: alg,
		Domain:    domain,
	}, pw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if err := saveIdentity(out, agent); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "Identity created\n")
	_, _ = fmt.Fprintf(stdout, "  ID:        %s\n", agent.ID)
	_, _ = fmt.Fprintf(stdout, "  Algorithm: %s\n", agent.Algorithm)
	_, _ = fmt.Fprintf(stdout, "  Key hash:  %s\n", agent.PublicKeyHash)
	return 0
}

func runRotateCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("rotate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var identityPath string
	cmd.StringVar(&identityPath, "identity", "", "Identity file (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if identityPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --identity is required")
		return 2
	}
	pw, ok := requirePassword(stderr)
	if !ok {
		return 2
	}

	agent, err := loadIdentity(identityPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	stmt, err := agent.Rotate(pw, identity.RotateParams{})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if err := saveIdentity(identityPath, agent); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "Key rotated\n")
	_, _ = fmt.Fprintf(stdout, "  New version:  %s\n", agent.Version)
	_, _ = fmt.Fprintf(stdout, "  New key hash: %s\n", agent.PublicKeyHash)
	raw, _ := json.MarshalIndent(stmt, "", "  ")
	_, _ = fmt.Fprintf(stdout, "Transition statement:\n%s\n", raw)
	return 0
}

func runCardCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("card", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var identityPath string
	cmd.StringVar(&identityPath, "identity", "", "Identity file (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if identityPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --identity is required")
		return 2
	}
	agent, err := loadIdentity(identityPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	raw, err := agent.ExportCard().MarshalIndent()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintln(stdout, string(raw))
	return 0
}

// runDNSRecordCmd prints the TXT record to publish and its owner name.
func runDNSRecordCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("dns-record", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var identityPath string
	cmd.StringVar(&identityPath, "identity", "", "Identity file (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if identityPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --identity is required")
		return 2
	}
	agent, err := loadIdentity(identityPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if agent.Domain == "" {
		_, _ = fmt.Fprintln(stderr, "Error: identity has no domain")
		return 2
	}
	pub, err := agent.PublicKeyBytes()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "Owner name: %s\n", contracts.DNSOwnerName(agent.Domain))
	_, _ = fmt.Fprintf(stdout, "TXT record: %s\n", dnsanchor.FormatRecord(agent.ID, pub))
	return 0
}
