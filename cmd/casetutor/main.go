package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/feedback"
	"github.com/casetutor/casetutor/pkg/llms"
	"github.com/casetutor/casetutor/pkg/tools"
	"github.com/casetutor/casetutor/pkg/tutor"
)

var (
	modelSpec    string
	embedderSpec string
	ratingsDB    string
	ratingsArrow string
	casePath     string
	exemplarK    int
	redisAddr    string
	verbose      bool
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "casetutor",
		Short: "LLM-driven clinical case tutoring sessions",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().StringVar(&modelSpec, "model", "ollama:llama3",
		"model spec (anthropic:<model>, ollama:[host:]<model>, openrouter:<model>)")
	root.PersistentFlags().StringVar(&embedderSpec, "embedder", "ollama:nomic-embed-text",
		"embedder spec (ollama:[host:]<model>, openai:<model>)")
	root.PersistentFlags().StringVar(&ratingsDB, "ratings-db", "ratings.db",
		"sqlite ratings database path")
	root.PersistentFlags().StringVar(&ratingsArrow, "ratings-arrow", "",
		"arrow IPC ratings export (overrides --ratings-db)")
	root.PersistentFlags().IntVar(&exemplarK, "exemplars", 3,
		"exemplars retrieved per tool call, 0 disables retrieval")
	root.PersistentFlags().StringVar(&redisAddr, "redis", "",
		"redis address for the shared tool result cache (empty for in-memory)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Run an interactive tutoring session over a case file",
		RunE:  runChat,
	}
	chatCmd.Flags().StringVar(&casePath, "case", "", "path to the clinical case text file")
	_ = chatCmd.MarkFlagRequired("case")

	rebuildCmd := &cobra.Command{
		Use:   "rebuild-index",
		Short: "Rebuild the exemplar retrieval index from the ratings log",
		RunE:  runRebuildIndex,
	}

	root.AddCommand(chatCmd, rebuildCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func apiKeyFor(spec string) string {
	switch {
	case strings.HasPrefix(spec, "anthropic:"):
		return os.Getenv("ANTHROPIC_API_KEY")
	case strings.HasPrefix(spec, "openrouter:"):
		return os.Getenv("OPENROUTER_API_KEY")
	case strings.HasPrefix(spec, "openai:"):
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

func newRetrieval(cfg *core.Config) (*feedback.RetrievalService, error) {
	var source feedback.LogSource
	if ratingsArrow != "" {
		source = feedback.NewArrowSource(ratingsArrow)
	} else {
		sqlite, err := feedback.NewSQLiteSource(ratingsDB)
		if err != nil {
			return nil, err
		}
		source = sqlite
	}
	return feedback.NewRetrievalService(source, cfg.Embedder,
		feedback.WithLogger(cfg.Logger())), nil
}

func newService(withRetrieval bool) (*tutor.TutorService, error) {
	llm, err := llms.NewLLM(apiKeyFor(modelSpec), modelSpec)
	if err != nil {
		return nil, err
	}
	embedder, err := llms.NewEmbedder(apiKeyFor(embedderSpec), embedderSpec)
	if err != nil {
		return nil, err
	}

	cfg := core.NewConfig().
		WithDefaultLLM(llm).
		WithEmbedder(embedder).
		WithLogger(slog.Default())

	registry := tools.NewRegistry(cfg)
	if err := tools.RegisterBuiltins(registry); err != nil {
		return nil, err
	}

	engineOpts := []tools.EngineOption{tools.WithEngineLogger(cfg.Logger())}
	if redisAddr != "" {
		cache, err := tools.NewRedisCache(redisAddr, os.Getenv("REDIS_PASSWORD"), 0, 24*time.Hour)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, tools.WithResultCache(cache))
	}
	engine := tools.NewEngine(registry, engineOpts...)

	opts := []tutor.Option{tutor.WithTutorLogger(cfg.Logger())}
	if withRetrieval && exemplarK > 0 {
		retrieval, err := newRetrieval(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tutor.WithRetrieval(retrieval, exemplarK))
	}
	return tutor.NewTutorService(cfg, registry, engine, opts...)
}

func runChat(cmd *cobra.Command, args []string) error {
	caseText, err := os.ReadFile(casePath)
	if err != nil {
		return err
	}

	svc, err := newService(true)
	if err != nil {
		return err
	}
	if err := svc.RebuildIndex(cmd.Context()); err != nil {
		// A missing or empty ratings log is not fatal; tutoring proceeds
		// without exemplars.
		slog.Warn("exemplar index unavailable", "err", err)
	}

	session := core.NewSession(string(caseText), modelSpec)
	fmt.Printf("Session %s started. Phase: %s\n", session.ID, session.Phase)
	fmt.Println("Type your message, or /phase <id> to override the phase, /quit to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case strings.HasPrefix(line, "/phase "):
			phase, err := core.ParsePhase(strings.TrimPrefix(line, "/phase "))
			if err != nil {
				fmt.Println("unknown phase")
				continue
			}
			if err := svc.OverridePhase(session, phase); err != nil {
				fmt.Println("could not override phase:", err)
				continue
			}
			fmt.Printf("Phase set to %s\n", session.Phase)
			continue
		}

		result, err := svc.ProcessTurn(cmd.Context(), session, line)
		if err != nil {
			return err
		}
		fmt.Println(result.Reply)
		if result.PhaseAfter != result.PhaseBefore {
			fmt.Printf("-- phase: %s --\n", result.PhaseAfter)
		}
		if session.Phase.Terminal() {
			fmt.Println("Session complete.")
			return nil
		}
	}
	return scanner.Err()
}

func runRebuildIndex(cmd *cobra.Command, args []string) error {
	embedder, err := llms.NewEmbedder(apiKeyFor(embedderSpec), embedderSpec)
	if err != nil {
		return err
	}
	cfg := core.NewConfig().WithEmbedder(embedder).WithLogger(slog.Default())

	retrieval, err := newRetrieval(cfg)
	if err != nil {
		return err
	}
	if err := retrieval.Rebuild(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("Index rebuilt with %d exemplars.\n", retrieval.Len())
	return nil
}
