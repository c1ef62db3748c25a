package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Mindburn-Labs/anchor/pkg/config"
	"github.com/Mindburn-Labs/anchor/pkg/contracts"
	"github.com/Mindburn-Labs/anchor/pkg/dnsanchor"
	"github.com/Mindburn-Labs/anchor/pkg/document"
	"github.com/Mindburn-Labs/anchor/pkg/schema"
	"github.com/Mindburn-Labs/anchor/pkg/store"
	"github.com/Mindburn-Labs/anchor/pkg/trust"
)

// buildEngine wires the document engine from config. The SQLite handle, when
// used, lives for the process; subcommands are one-shot so no Close plumbing.
func buildEngine(cfg *config.Config) (*document.Engine, error) {
	var storage store.Storage
	var err error
	switch cfg.StorageBackend {
	case "sqlite":
		storage, err = store.NewSQLite(filepath.Join(cfg.DataDir, "documents.db"))
	case "", "fs":
		storage, err = store.NewFS(filepath.Join(cfg.DataDir, "documents"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, err
	}

	trustStore, err := trust.NewStore(cfg.TrustStoreRoot)
	if err != nil {
		return nil, err
	}
	anchor := dnsanchor.New(dnsanchor.Options{Strict: cfg.DNSStrict})

	var schemas *schema.Registry
	if cfg.SchemaDir != "" {
		schemas = schema.NewRegistry()
		if err := schemas.LoadDir(cfg.SchemaDir); err != nil {
			return nil, err
		}
	}

	return document.NewEngine(document.Options{
		Storage:  storage,
		Resolver: trust.NewResolver(trustStore, anchor),
		Anchor:   anchor,
		Schemas:  schemas,
		DNSFlags: dnsanchor.Flags{
			Validate: cfg.DNSValidate,
			Required: cfg.DNSRequired,
			Strict:   cfg.DNSStrict,
		},
		MaxSignatureAge: cfg.MaxSignatureAge,
	})
}

func readContent(path string) (any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content read: %w", err)
	}
	var content any
	if err := json.Unmarshal(raw, &content); err != nil {
		return nil, fmt.Errorf("content parse: %w", err)
	}
	return content, nil
}

func writeDocument(doc *contracts.Document, out string, stdout io.Writer) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if out == "" {
		_, err = fmt.Fprintln(stdout, string(raw))
		return err
	}
	return os.WriteFile(out, raw, 0o644)
}

func runSignCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sign", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var identityPath, docType, contentPath, out string
	cmd.StringVar(&identityPath, "identity", "", "Identity file (REQUIRED)")
	cmd.StringVar(&docType, "type", "", "Document type (REQUIRED)")
	cmd.StringVar(&contentPath, "content", "", "JSON content file (REQUIRED)")
	cmd.StringVar(&out, "out", "", "Write signed document here (default stdout)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if identityPath == "" || docType == "" || contentPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --identity, --type and --content are required")
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
	content, err := readContent(contentPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	engine, err := buildEngine(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	doc, err := engine.Create(context.Background(), docType, content, agent, pw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if err := writeDocument(doc, out, stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if out != "" {
		_, _ = fmt.Fprintf(stdout, "Signed document %s\n", doc.StorageKey())
	}
	return 0
}

func runUpdateCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("update", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var identityPath, docID, contentPath, out string
	cmd.StringVar(&identityPath, "identity", "", "Identity file (REQUIRED)")
	cmd.StringVar(&docID, "id", "", "Document id to update (REQUIRED)")
	cmd.StringVar(&contentPath, "content", "", "JSON content file (REQUIRED)")
	cmd.StringVar(&out, "out", "", "Write signed document here (default stdout)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if identityPath == "" || docID == "" || contentPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --identity, --id and --content are required")
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
	content, err := readContent(contentPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	engine, err := buildEngine(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	prev, err := engine.Latest(ctx, docID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	doc, err := engine.Update(ctx, prev, content, agent, pw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if err := writeDocument(doc, out, stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if out != "" {
		_, _ = fmt.Fprintf(stdout, "Signed document %s\n", doc.StorageKey())
	}
	return 0
}

func runVerifyCmd(cfg *config.Config, args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var docPath string
	var jsonOutput bool
	cmd.StringVar(&docPath, "document", "", "Signed document file (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if docPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --document is required")
		return 2
	}

	raw, err := os.ReadFile(docPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	var doc contracts.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: document parse: %v\n", err)
		return 2
	}
	engine, err := buildEngine(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	result := engine.Verify(context.Background(), &doc, document.VerifyParams{})

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else if result.Valid {
		_, _ = fmt.Fprintf(stdout, "Verification PASSED\n")
		_, _ = fmt.Fprintf(stdout, "  Signer:    %s\n", result.SignerID)
		_, _ = fmt.Fprintf(stdout, "  Algorithm: %s\n", result.Algorithm)
		if result.DNSAttempted {
			_, _ = fmt.Fprintf(stdout, "  DNS:       verified=%v\n", result.DNSVerified)
		}
	} else {
		_, _ = fmt.Fprintf(stdout, "Verification FAILED\n")
		for _, e := range result.Errors {
			_, _ = fmt.Fprintf(stdout, "  - %s\n", e)
		}
	}

	if !result.Valid {
		return 1
	}
	return 0
}
