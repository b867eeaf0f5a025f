package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cricsight/internal/infra/config"
	"cricsight/internal/infra/logger"
	"cricsight/internal/infra/tracer"
	"cricsight/internal/usecase"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	flags := parseFlags()

	if len(os.Args) >= 2 && !strings.HasPrefix(os.Args[1], "-") {
		switch os.Args[1] {
		case "ask":
			if err := runAsk(flags); err != nil {
				fmt.Fprintf(os.Stderr, "ask: %v\n", err)
				os.Exit(1)
			}
		case "refresh":
			if err := runRefresh(flags); err != nil {
				fmt.Fprintf(os.Stderr, "refresh: %v\n", err)
				os.Exit(1)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'cricsight --help' for usage.\n", os.Args[1])
			os.Exit(1)
		}
		return
	}

	if err := run(flags); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`cricsight - cricket intelligence agent

USAGE:
    cricsight [COMMAND] [FLAGS]

COMMANDS:
    ask QUESTION   Answer a single question and exit
    refresh        Run one news ingestion pass and exit

    (no command)   Interactive chat session

FLAGS:
    -h, --help       Show this help message
    --config PATH    Config file path (default: ./config.yaml)
    --session NAME   Session key for conversation history (default: cli)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: CRICSIGHT_* variables override config

EXAMPLES:
    cricsight                                  # Interactive chat
    cricsight ask "who has the most Test runs?"
    cricsight --session ashes                  # Named session
    cricsight refresh                          # Pull fresh news now`)
}

// cliFlags holds parsed command line flags.
type cliFlags struct {
	ConfigPath string
	Session    string
	Args       []string // positional arguments after the command
}

func parseFlags() cliFlags {
	flags := cliFlags{
		ConfigPath: "config.yaml",
		Session:    "cli",
	}
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		args = args[1:] // skip the subcommand
	}
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 < len(args) {
				flags.ConfigPath = args[i+1]
				i++
			}
		case "--session":
			if i+1 < len(args) {
				flags.Session = args[i+1]
				i++
			}
		default:
			flags.Args = append(flags.Args, args[i])
		}
	}
	return flags
}

// run starts the interactive chat loop.
func run(flags cliFlags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, cleanup, err := loadConfigAndLogger(flags.ConfigPath)
	if err != nil {
		return err
	}
	defer cleanup()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer setup: %w", err)
	}
	defer shutdownTracer(context.Background())

	components, err := initComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	session := components.Sessions.GetOrCreate(flags.Session)
	fmt.Println("cricsight - ask me anything about cricket (Ctrl+D to exit)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nyou> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		if err := answerOne(ctx, components, session, line); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}

		if err := components.Sessions.Save(flags.Session); err != nil {
			log.Warn("session save failed", "error", err)
		}

		if ctx.Err() != nil {
			break
		}
	}

	fmt.Println("\ngoodbye")
	return nil
}

// runAsk answers a single question from the command line.
func runAsk(flags cliFlags) error {
	if len(flags.Args) == 0 {
		return fmt.Errorf("usage: cricsight ask \"your question\"")
	}
	question := strings.Join(flags.Args, " ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, cleanup, err := loadConfigAndLogger(flags.ConfigPath)
	if err != nil {
		return err
	}
	defer cleanup()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer setup: %w", err)
	}
	defer shutdownTracer(context.Background())

	components, err := initComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	session := components.Sessions.GetOrCreate(flags.Session)
	if err := answerOne(ctx, components, session, question); err != nil {
		return err
	}
	return components.Sessions.Save(flags.Session)
}

// runRefresh performs one news ingestion pass.
func runRefresh(flags cliFlags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, cleanup, err := loadConfigAndLogger(flags.ConfigPath)
	if err != nil {
		return err
	}
	defer cleanup()

	refresher, err := initRefresher(cfg, log)
	if err != nil {
		return err
	}

	added, err := refresher.RefreshOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d new articles\n", added)
	return nil
}

func answerOne(ctx context.Context, c *Components, session *usecase.Session, question string) error {
	result, err := c.Agent.HandleMessage(ctx, session, question)
	if err != nil {
		return err
	}

	fmt.Println("\n" + result.Response)
	if result.Insight != nil && len(result.Insight.Insights) > 0 {
		fmt.Println()
		for _, insight := range result.Insight.Insights {
			fmt.Printf("  * %s\n", insight)
		}
		fmt.Printf("  (confidence: %s, query type: %s)\n",
			result.Insight.Confidence, result.Insight.QueryType)
	}
	return nil
}

func loadConfigAndLogger(path string) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("logger setup: %w", err)
	}
	cleanup := func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "logger close: %v\n", err)
		}
	}
	return cfg, log, cleanup, nil
}
