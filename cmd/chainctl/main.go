package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/asakaida/modelchain/internal/app"
	"github.com/asakaida/modelchain/internal/entities"
	"github.com/asakaida/modelchain/internal/infrastructure/config"
	"github.com/asakaida/modelchain/internal/services/chain"
	"github.com/asakaida/modelchain/internal/services/querybuilder"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	envFlag     string
	chainFlag   string
	fileFlag    string
	formatFlag  string
	timeoutFlag time.Duration
	verboseFlag bool
	core        *app.App
)

var rootCmd = &cobra.Command{
	Use:   "chainctl",
	Short: "Resolve entity chains from the command line",
	Long: `Resolve entity chains against the configured database.

A chain names entity types from root to terminal, each with optional
parameters. It is given inline with --chain or read from --file ("-" for
stdin), as YAML or JSON:

  chainctl get-all --chain '{User: {id: 1}, Post: {}}'
  chainctl get-one --file chain.yaml 10
  chainctl plan --chain '[{entity: User, params: {id: 1}}, {entity: Post}]'`,
	SilenceUsage:      true,
	PersistentPreRunE: setupCore,
	PersistentPostRun: closeCore,
}

var getAllCmd = &cobra.Command{
	Use:   "get-all",
	Short: "Fetch every row of the terminal entity with its relationships",
	Args:  cobra.NoArgs,
	RunE:  runGetAll,
}

var getOneCmd = &cobra.Command{
	Use:   "get-one <id>",
	Short: "Fetch the terminal entity row with the given primary key",
	Args:  cobra.ExactArgs(1),
	RunE:  runGetOne,
}

var countCmd = &cobra.Command{
	Use:   "count [id]",
	Short: "Count rows of the terminal entity",
	Long:  `Count rows of the terminal entity, or only the row with the given primary key.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCount,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the accumulated joins and predicates for a chain",
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&envFlag, "env", "e", "dev", "Environment to use (dev, test, prod)")
	rootCmd.PersistentFlags().StringVarP(&chainFlag, "chain", "c", "", "Chain as inline YAML or JSON")
	rootCmd.PersistentFlags().StringVarP(&fileFlag, "file", "f", "", `File holding the chain ("-" for stdin)`)
	rootCmd.PersistentFlags().StringVarP(&formatFlag, "output", "o", formatJSON, "Output format (json, yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second, "Timeout for the whole command")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log resolver queries to stderr")

	rootCmd.AddCommand(getAllCmd)
	rootCmd.AddCommand(getOneCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupCore(cmd *cobra.Command, args []string) error {
	if err := config.InitConfig(envFlag); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verboseFlag {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	// A private registry keeps the exporter from polluting the default one
	core, err = app.New(cfg, logger, prometheus.NewRegistry())
	return err
}

func closeCore(cmd *cobra.Command, args []string) {
	if core != nil {
		if err := core.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}
	}
}

// terminal builds the chain from the flags and returns its terminal node
func terminal(ctx context.Context, cmd *cobra.Command) (*chain.Node, error) {
	levels, err := readLevels(chainFlag, fileFlag, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	root, err := chain.Build(ctx, core, levels)
	if err != nil {
		return nil, err
	}
	return root.Terminal(), nil
}

func runGetAll(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	node, err := terminal(ctx, cmd)
	if err != nil {
		return err
	}
	tree, err := core.Resolver.GetAll(ctx, node)
	if err != nil {
		return err
	}
	return write(cmd.OutOrStdout(), formatFlag, tree)
}

func runGetOne(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	node, err := terminal(ctx, cmd)
	if err != nil {
		return err
	}
	tree, err := core.Resolver.GetOne(ctx, node, parseArgs(args)...)
	if err != nil {
		return err
	}
	if len(tree.Rows(node.Entity().Name)) == 0 {
		return fmt.Errorf("%s not found", node.Entity().Name)
	}
	return write(cmd.OutOrStdout(), formatFlag, tree)
}

func runCount(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	node, err := terminal(ctx, cmd)
	if err != nil {
		return err
	}
	n, err := core.Resolver.Count(ctx, node, parseArgs(args)...)
	if err != nil {
		return err
	}
	return write(cmd.OutOrStdout(), formatFlag, map[string]interface{}{
		"entity": node.Entity().Name,
		"count":  n,
	})
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag)
	defer cancel()

	node, err := terminal(ctx, cmd)
	if err != nil {
		return err
	}
	q := querybuilder.Plan(node)
	query, queryArgs, err := core.Renderer.RenderComponents(q)
	if err != nil {
		return err
	}
	return write(cmd.OutOrStdout(), formatFlag, planOutput(q, query, queryArgs))
}

func planOutput(q *entities.QueryComponents, query string, args []interface{}) map[string]interface{} {
	fields := make([]string, len(q.Fields))
	for i, f := range q.Fields {
		fields[i] = fmt.Sprintf("%s.%s AS %s", f.Table, f.Field, f.Alias)
	}
	if args == nil {
		args = []interface{}{}
	}
	return map[string]interface{}{
		"from":   q.From,
		"fields": fields,
		"joins":  len(q.Joins),
		"sql":    query,
		"args":   args,
	}
}
