package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/Strob0t/Switchboard/internal/adapter/litellm"
	"github.com/Strob0t/Switchboard/internal/adapter/postgres"
	"github.com/Strob0t/Switchboard/internal/config"
	"github.com/Strob0t/Switchboard/internal/domain"
	"github.com/Strob0t/Switchboard/internal/service"
)

const adminTimeout = 30 * time.Second

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "transcript":
		return runAdminTranscript(args[1:])
	case "conversations":
		return runAdminConversations(args[1:])
	case "migrate":
		return runAdminMigrate(args[1:])
	case "send":
		return runAdminSend(args[1:])
	case "models":
		return runAdminModels(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: switchboard admin <command> [options]

Commands:
  transcript      Print the stored transcript of a conversation
  conversations   List stored conversation IDs
  migrate         Apply, roll back or inspect database migrations
  send            Post a customer message to a running instance
  models          List models configured in the LiteLLM proxy
  help            Show this help message

Examples:
  switchboard admin transcript --conversation conv_cust-1_1700000000000
  switchboard admin transcript --conversation s1 --json
  switchboard admin migrate
  switchboard admin migrate --down 1
  switchboard admin send --customer cust-1 --message "I was charged twice"
  switchboard admin send --customer cust-1 --message "Still waiting" --session s1
`)
}

// loadAdminRepo opens the configured store without the L1 cache.
func loadAdminRepo(ctx context.Context) (*service.ConversationRepo, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Cache.Enabled = false

	in, err := openInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return service.NewConversationRepo(in.store), in.Close, nil
}

func runAdminTranscript(args []string) error {
	fs := flag.NewFlagSet("transcript", flag.ContinueOnError)
	id := fs.String("conversation", "", "conversation ID (required)")
	asJSON := fs.Bool("json", false, "print the raw record as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("--conversation is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	repo, cleanup, err := loadAdminRepo(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	conv, err := repo.Get(ctx, *id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("conversation %s not found", *id)
		}
		return err
	}

	// Pipes get JSON unless a table was asked for explicitly.
	if *asJSON || !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // fd fits in int
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(conv)
	}

	fmt.Printf("Conversation %s (agent: %s)\n", conv.ConversationID, conv.CurrentAgent.DisplayName())
	if conv.HandoffReason != "" {
		fmt.Printf("Last handoff: %s\n", conv.HandoffReason)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tROLE\tSOURCE\tMESSAGE")
	for _, m := range conv.Messages {
		source := m.Source
		if m.HandoffTransition {
			source += " (handoff)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			time.UnixMilli(m.Timestamp).Format(time.DateTime), m.Role, source, oneLine(m.Content))
	}
	return w.Flush()
}

func runAdminConversations(args []string) error {
	fs := flag.NewFlagSet("conversations", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	repo, cleanup, err := loadAdminRepo(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ids, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tAGENT\tMESSAGES")
	for _, id := range ids {
		conv, err := repo.Get(ctx, id)
		if err != nil {
			_, _ = fmt.Fprintf(w, "%s\t?\t?\n", id)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", id, conv.CurrentAgent, conv.Len())
	}
	return w.Flush()
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	down := fs.Int("down", 0, "roll back this many migrations instead of applying")
	status := fs.Bool("status", false, "print the current schema version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Backend != "postgres" {
		fmt.Fprintf(os.Stderr, "store backend is %q; migrations only apply to postgres\n", cfg.Store.Backend)
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	switch {
	case *status:
	case *down > 0:
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, *down); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
	default:
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Schema version: %d\n", v)
	return nil
}

func runAdminSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	customer := fs.String("customer", "", "customer ID (required)")
	message := fs.String("message", "", "message text (required)")
	session := fs.String("session", "", "conversation ID to continue")
	baseURL := fs.String("url", "", "API base URL (default http://localhost:<server.port>)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := service.IngestRequest{CustomerID: *customer, Message: *message, SessionID: *session}
	if err := req.Validate(); err != nil {
		return err
	}

	url := *baseURL
	if url == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		url = "http://localhost:" + cfg.Server.Port
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(url, "/")+"/api/v1/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send: %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var res service.IngestResult
	if err := json.Unmarshal(respBody, &res); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	fmt.Fprintf(os.Stderr, "%s (conversation=%s)\n", res.Message, res.ConversationID)
	return nil
}

func runAdminModels(args []string) error {
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
	defer cancel()

	models, err := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LLM.Timeout).ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if len(models) == 0 {
		fmt.Println("No models configured.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPROVIDER\tID")
	for _, m := range models {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", m.ModelName, m.Provider, m.ModelID)
	}
	return w.Flush()
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 100 {
		return s[:97] + "..."
	}
	return s
}
