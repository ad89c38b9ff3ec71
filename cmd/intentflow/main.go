package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/intentflow/intentflow/internal/catalog"
	"github.com/intentflow/intentflow/internal/config"
	"github.com/intentflow/intentflow/internal/conversation"
	"github.com/intentflow/intentflow/internal/models"
	"github.com/intentflow/intentflow/internal/pipeline"
	"github.com/intentflow/intentflow/internal/store"
	"github.com/intentflow/intentflow/internal/workflow"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	printBanner()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Config error: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Printf("❌ Logger error: %v\n", err)
			os.Exit(1)
		}
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down...")
		cancel()
		os.Exit(0)
	}()

	sessions, err := store.NewSQLiteSessionStore(cfg.Store.SQLitePath)
	if err != nil {
		fmt.Printf("❌ Session store error: %v\n", err)
		os.Exit(1)
	}
	defer sessions.Close()

	var cache store.SessionCache
	if cfg.EnableRedis {
		redisCache, err := store.NewRedisSessionCache(cfg.Store)
		if err != nil {
			fmt.Printf("⚠️ Redis unavailable, using in-memory cache: %v\n", err)
			cache = store.NewMemorySessionCache(cfg.Store.CacheTTL)
		} else {
			cache = redisCache
		}
	} else {
		cache = store.NewMemorySessionCache(cfg.Store.CacheTTL)
	}
	defer cache.Close()

	cat, err := loadCatalog(ctx, cfg)
	if err != nil {
		fmt.Printf("⚠️ Catalog store unavailable, using built-in defaults: %v\n", err)
		cat = catalog.NewWithDefaults()
	}

	engine := conversation.NewEngine(sessions,
		conversation.WithCache(cache),
		conversation.WithLogger(logger),
		conversation.WithSessionTTL(cfg.SessionTTL))
	engine.StartReaper(ctx, cfg.ReaperInterval)

	pipeOpts := []pipeline.PipelineOption{pipeline.WithLogger(logger)}
	if cfg.EnableDgraph {
		graph, err := store.NewDgraphEntityGraph(cfg.Store.DgraphURL)
		if err != nil {
			fmt.Printf("⚠️ Dgraph unavailable, entity graph disabled: %v\n", err)
		} else {
			defer graph.Close()
			pipeOpts = append(pipeOpts, pipeline.WithEntityGraph(graph))
		}
	}
	pipe := pipeline.New(cfg.Pipeline, cat, engine, pipeOpts...)

	session, err := engine.CreateSession(ctx, "")
	if err != nil {
		fmt.Printf("❌ Session error: %v\n", err)
		os.Exit(1)
	}
	sessionID := session.ID

	fmt.Printf("✓ Session %s | %d intents, %d entity types loaded\n\n",
		shortID(sessionID), len(cat.IntentPatterns()), len(cat.EntityDefinitions()))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if handleCommand(ctx, input, engine, pipe, &sessionID) {
				return
			}
			continue
		}

		result, err := pipe.Process(ctx, input, sessionID)
		if err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
			continue
		}
		sessionID = result.Session.ID

		printResult(result)

		if result.Status == pipeline.StatusNeedsClarification && result.Workflow != nil {
			clarify(scanner, result)
		}
	}
}

// clarify runs an interactive slot-filling exchange for a workflow's missing
// required parameters. On completion the workflow is finalized and its
// actions printed. An empty answer skips the exchange.
func clarify(scanner *bufio.Scanner, result *pipeline.Result) {
	state := conversation.InitializeSlots(result.Workflow.Name, result.MissingParameters)

	for !state.Complete && !conversation.Exhausted(state) {
		fmt.Printf("? %s\n> ", state.NextPrompt)
		if !scanner.Scan() {
			return
		}
		value := strings.TrimSpace(scanner.Text())
		if value == "" {
			fmt.Println("Skipped")
			fmt.Println()
			return
		}

		accepted, err := conversation.FillSlot(state, state.CurrentSlot, value)
		if err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
			return
		}
		if !accepted {
			conversation.IncrementAttempts(state)
			fmt.Println("That value doesn't look right, try again.")
		}
	}
	if !state.Complete {
		fmt.Println("Too many attempts, giving up.")
		fmt.Println()
		return
	}

	for _, slot := range state.Slots {
		result.Workflow.Parameters = append(result.Workflow.Parameters, models.WorkflowParameter{
			Name:       slot.Name,
			Value:      slot.Value,
			Confidence: 90,
		})
	}
	result.Workflow.Missing = nil
	result.Workflow.Ready = true
	result.Actions = workflow.Actions(result.Workflow)

	fmt.Printf("✓ Workflow %s ready\n", result.Workflow.Name)
	for _, a := range result.Actions {
		confirm := ""
		if a.Confirmation {
			confirm = " [confirm]"
		}
		fmt.Printf("Action %d: %s%s - %s\n", a.Order, a.Type, confirm, a.Description)
	}
	fmt.Println()
}

// loadCatalog seeds the catalog store on first boot and builds the in-memory
// catalog from it afterwards.
func loadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	catalogStore, err := store.NewBadgerCatalogStore(cfg.Store.BadgerPath)
	if err != nil {
		return nil, err
	}
	defer catalogStore.Close()

	patterns, err := catalogStore.LoadIntentPatterns(ctx)
	if err != nil {
		return nil, err
	}

	if len(patterns) == 0 {
		if err := seedCatalog(ctx, catalogStore); err != nil {
			return nil, err
		}
		return catalog.NewWithDefaults(), nil
	}

	definitions, err := catalogStore.LoadEntityDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	mappings, err := catalogStore.LoadWorkflowMappings(ctx)
	if err != nil {
		return nil, err
	}

	return catalog.New(patterns, definitions, mappings)
}

// seedCatalog writes the built-in default tables through the catalog store so
// later boots and operator edits round-trip.
func seedCatalog(ctx context.Context, catalogStore *store.BadgerCatalogStore) error {
	for _, p := range catalog.DefaultIntentPatterns() {
		p := p
		if err := catalogStore.SaveIntentPattern(ctx, &p); err != nil {
			return err
		}
	}
	for _, d := range catalog.DefaultEntityDefinitions() {
		d := d
		if err := catalogStore.SaveEntityDefinition(ctx, &d); err != nil {
			return err
		}
	}
	for _, m := range catalog.DefaultWorkflowMappings() {
		m := m
		if err := catalogStore.SaveWorkflowMapping(ctx, &m); err != nil {
			return err
		}
	}
	return nil
}

// handleCommand processes slash commands; it returns true when the REPL
// should exit.
func handleCommand(ctx context.Context, cmd string, engine *conversation.Engine, pipe *pipeline.Pipeline, sessionID *string) bool {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "/help":
		fmt.Println("\nCommands: /help /new /end /history /stats /exit")
		fmt.Println()
	case "/new":
		session, err := engine.CreateSession(ctx, "")
		if err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
			return false
		}
		*sessionID = session.ID
		fmt.Printf("✓ New session %s\n\n", shortID(session.ID))
	case "/end":
		if err := engine.EndSession(ctx, *sessionID); err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
			return false
		}
		fmt.Println("✓ Session ended")
		session, err := engine.CreateSession(ctx, "")
		if err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
			return false
		}
		*sessionID = session.ID
		fmt.Printf("✓ New session %s\n\n", shortID(session.ID))
	case "/history":
		session, err := engine.GetSession(ctx, *sessionID)
		if err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
			return false
		}
		if len(session.Turns) == 0 {
			fmt.Println("\nNo history")
			fmt.Println()
			return false
		}
		fmt.Println("\n=== History ===")
		for i, turn := range session.Turns {
			fmt.Printf("%d. %s -> %s (%d%%)\n", i+1, truncate(turn.Input, 50),
				turn.Intent.Name, turn.Intent.Confidence)
		}
		fmt.Println()
	case "/stats":
		stats := pipe.Stats()
		fmt.Printf("\nProcessed: %d | Last latency: %s\n", stats.Processed, stats.LastLatency)
		for status, count := range stats.ByStatus {
			fmt.Printf("  %s: %d\n", status, count)
		}
		fmt.Println()
	case "/exit", "/quit":
		fmt.Println("Goodbye! 👋")
		return true
	}
	return false
}

func printResult(result *pipeline.Result) {
	fmt.Printf("\nStatus: %s\n", result.Status)
	if result.ResolvedText != "" {
		fmt.Printf("Resolved: %s\n", result.ResolvedText)
	}
	for _, intent := range result.Intents {
		fmt.Printf("Intent: %s (%d%%)\n", intent.Name, intent.Confidence)
	}
	for _, e := range result.Entities {
		fmt.Printf("Entity: %s=%s (%d%%)\n", e.Type, e.NormalizedOrValue(), e.Confidence)
	}
	if result.Workflow != nil {
		fmt.Printf("Workflow: %s (ready=%v, %d%%)\n",
			result.Workflow.Name, result.Workflow.Ready, result.Workflow.Confidence)
		for _, p := range result.Workflow.Parameters {
			marker := ""
			if p.Inferred {
				marker = " (inferred)"
			}
			fmt.Printf("  %s=%s%s\n", p.Name, p.Value, marker)
		}
	}
	if len(result.MissingParameters) > 0 {
		fmt.Printf("Missing: %s\n", strings.Join(result.MissingParameters, ", "))
	}
	for _, a := range result.Actions {
		confirm := ""
		if a.Confirmation {
			confirm = " [confirm]"
		}
		fmt.Printf("Action %d: %s%s - %s\n", a.Order, a.Type, confirm, a.Description)
	}
	fmt.Println()
}

func printBanner() {
	fmt.Printf(`
╔═════════════════════════════════════════════════════════╗
║          IntentFlow Command Interpreter %s            ║
║        Rule-based natural language pipeline             ║
╚═════════════════════════════════════════════════════════╝

`, version)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
