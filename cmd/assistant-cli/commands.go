package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/cart"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/fallback"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/ingest"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/retrieval"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/storage"
)

// newSearchCmd creates the search subcommand.
func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog like the agent does",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			query := strings.Join(args, " ")
			var outcome *retrieval.SearchOutcome
			err = ui.Spin("Searching...", func() error {
				var searchErr error
				outcome, searchErr = a.Service.SearchOutcome(ctx, query, limit)
				return searchErr
			})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if outputJSON {
				return ui.JSON(outcome)
			}

			ui.Section("Search")
			ui.KeyValue("Query", outcome.Enhancement.Query)
			ui.KeyValue("Rule", outcome.Enhancement.Rule)
			ui.KeyValue("Top score", fmt.Sprintf("%.3f", outcome.TopScore))
			if outcome.Retried {
				ui.KeyValue("Retry word", outcome.RetryWord)
			}
			fmt.Fprintln(cmd.OutOrStdout())

			if verbose && len(outcome.Results) > 0 {
				rows := make([][]string, 0, len(outcome.Results))
				for i, r := range outcome.Results {
					rows = append(rows, []string{strconv.Itoa(i + 1), r.EAN, r.Name, r.Category, fmt.Sprintf("%.3f", r.Score)})
				}
				ui.Table([]string{"#", "EAN", "Product", "Category", "Score"}, rows)
				return nil
			}
			ui.Text(outcome.Text())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum rows to rank (default from config)")
	return cmd
}

// newCartCmd creates the cart command group.
func newCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Inspect and edit a customer's cart",
	}
	cmd.AddCommand(newCartAddCmd(), newCartListCmd(), newCartRemoveCmd(), newCartClearCmd())
	return cmd
}

func newCartAddCmd() *cobra.Command {
	var (
		quantity float64
		units    int
		note     string
		price    float64
	)

	cmd := &cobra.Command{
		Use:   "add <phone> <product>",
		Short: "Add an item to a cart",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *assistant.Service) error {
				text := svc.AddItem(ctx, args[0], assistant.AddItemRequest{
					Product:  strings.Join(args[1:], " "),
					Quantity: quantity,
					Units:    units,
					Note:     note,
					Price:    price,
				})
				return printText(text)
			})
		},
	}

	cmd.Flags().Float64VarP(&quantity, "quantity", "q", 1, "quantity, or estimated kg for weighed items")
	cmd.Flags().IntVarP(&units, "units", "u", 0, "piece count for weighed items")
	cmd.Flags().StringVarP(&note, "note", "n", "", "item note")
	cmd.Flags().Float64VarP(&price, "price", "p", 0, "unit price (per kg for weighed items)")
	return cmd
}

func newCartListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <phone>",
		Short: "Show a cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *assistant.Service) error {
				phone := args[0]
				if !outputJSON && !verbose {
					ui.Text(svc.ViewCart(ctx, phone))
					return nil
				}

				items, err := svc.Items(ctx, phone)
				if err != nil {
					return fmt.Errorf("list cart: %w", err)
				}
				if outputJSON {
					return ui.JSON(map[string]interface{}{
						"phone": phone,
						"items": items,
						"total": cart.Total(items).StringFixed(2),
					})
				}

				rows := make([][]string, 0, len(items))
				for i, item := range items {
					rows = append(rows, []string{
						strconv.Itoa(i + 1),
						item.Product,
						strconv.FormatFloat(item.Quantity, 'f', -1, 64),
						strconv.Itoa(item.Units),
						item.Subtotal().StringFixed(2),
						item.Note,
					})
				}
				ui.Table([]string{"#", "Product", "Qty", "Units", "Subtotal", "Note"}, rows)
				ui.KeyValue("Total", "R$ "+cart.Total(items).StringFixed(2))
				return nil
			})
		},
	}
}

func newCartRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <phone> <index>",
		Short: "Remove an item by its 1-based index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[1], err)
			}
			return withService(func(ctx context.Context, svc *assistant.Service) error {
				return printText(svc.RemoveItem(ctx, args[0], index))
			})
		},
	}
}

func newCartClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <phone>",
		Short: "Empty a cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *assistant.Service) error {
				return printText(svc.ClearCart(ctx, args[0]))
			})
		},
	}
}

// newCheckoutCmd creates the checkout subcommand.
func newCheckoutCmd() *cobra.Command {
	var (
		name    string
		address string
		payment string
		note    string
	)

	cmd := &cobra.Command{
		Use:   "checkout <phone>",
		Short: "Submit a cart as an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(func(ctx context.Context, svc *assistant.Service) error {
				logger.Info().Str("phone", args[0]).Msg("Finalizing order")
				return printText(svc.Finalize(ctx, assistant.FinalizeRequest{
					Customer: name,
					Phone:    args[0],
					Address:  address,
					Payment:  payment,
					Note:     note,
				}))
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "customer name")
	cmd.Flags().StringVar(&address, "address", "", "delivery address")
	cmd.Flags().StringVar(&payment, "payment", "", "payment method")
	cmd.Flags().StringVar(&note, "note", "", "order note")
	return cmd
}

// newVectorizeCmd creates the vectorize subcommand.
func newVectorizeCmd() *cobra.Command {
	var (
		checkpoint string
		batchSize  int
		maxErrors  int
		fresh      bool
	)

	cmd := &cobra.Command{
		Use:   "vectorize <catalog-file>",
		Short: "Embed the product catalog into the search index",
		Long: `Vectorize reads the catalog export, one "ean ... setor ... categoria ..." line
per product, embeds products in batches and upserts them into the index.
Progress is checkpointed so an interrupted run resumes where it stopped;
--fresh discards the checkpoint first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer f.Close()

			pcfg := ingest.DefaultPipelineConfig()
			if cmd.Flags().Changed("checkpoint") {
				pcfg.CheckpointPath = checkpoint
			}
			if batchSize > 0 {
				pcfg.BatchSize = batchSize
			} else if cfg.Embedding.BatchSize > 0 {
				pcfg.BatchSize = cfg.Embedding.BatchSize
			}
			if maxErrors > 0 {
				pcfg.MaxErrors = maxErrors
			}
			if fresh {
				if err := ingest.NewCheckpoint(pcfg.CheckpointPath).Clear(); err != nil {
					return fmt.Errorf("clear checkpoint: %w", err)
				}
			}

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var bar *progressbar.ProgressBar
			onProgress := func(p ingest.Progress) {
				if ui.jsonMode {
					return
				}
				if bar == nil {
					bar = ui.ProgressBar(p.Total, "Vectorizing")
				}
				_ = bar.Set(p.Processed)
			}

			result, err := a.Pipeline(pcfg).Run(ctx, f, onProgress)
			if outputJSON && result != nil {
				if jerr := ui.JSON(result); jerr != nil {
					return jerr
				}
			}
			if err != nil {
				if result != nil {
					ui.Warning("Stopped after %d products; rerun to resume from the checkpoint", result.Processed)
				}
				return fmt.Errorf("vectorize: %w", err)
			}

			ui.Success("Vectorized %d products in %s", result.Processed-result.StartOffset, FormatDuration(result.Duration))
			ui.KeyValue("Job", result.JobID)
			ui.KeyValue("Lines", result.Lines)
			ui.KeyValue("Parsed", result.Parsed)
			if result.StartOffset > 0 {
				ui.KeyValue("Resumed at", result.StartOffset)
			}
			if len(result.Skipped) > 0 {
				ui.Warning("%d lines skipped", len(result.Skipped))
				if verbose {
					rows := make([][]string, 0, len(result.Skipped))
					for _, s := range result.Skipped {
						rows = append(rows, []string{strconv.Itoa(s.Line), s.Preview})
					}
					ui.Table([]string{"Line", "Preview"}, rows)
				}
			}
			if len(result.Errors) > 0 {
				ui.Warning("%d batches retried", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&checkpoint, "checkpoint", ingest.DefaultCheckpointPath, "checkpoint file (empty disables resume)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "products per embedding batch (default from config)")
	cmd.Flags().IntVar(&maxErrors, "max-errors", 0, "failed batches tolerated before aborting")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore any checkpoint and rebuild the index")
	return cmd
}

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the product index schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			db, err := storage.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN(), storage.PoolConfig{})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			manager := storage.NewMigrationManager(db, cfg.Database.Driver)
			var st *storage.MigrationStatus
			if status {
				st, err = manager.CheckMigrations(ctx)
			} else {
				logger.Info().Str("driver", cfg.Database.Driver).Msg("Running migrations")
				st, err = manager.Migrate(ctx)
			}
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			if outputJSON {
				return ui.JSON(st)
			}
			if status {
				ui.KeyValue("Applied", len(st.Applied))
				ui.KeyValue("Pending", strings.Join(st.Pending, ", "))
				if st.UpToDate {
					ui.Success("Schema is up to date")
				} else {
					ui.Warning("%d migrations pending", len(st.Pending))
				}
				return nil
			}
			ui.Success("Migrations applied on %s (%d total)", cfg.Database.Driver, st.Total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "only report applied and pending migrations")
	return cmd
}

// newFallbackCmd creates the fallback subcommand.
func newFallbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fallback [tool-output...]",
		Short: "Build the fallback reply from raw tool outputs",
		Long: `Fallback classifies tool outputs and prints the reply the assistant sends
when the agent produced no text. Outputs come from arguments, or from stdin
separated by blank lines when no arguments are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputs := args
			if len(outputs) == 0 {
				var err error
				outputs, err = readBlocks(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
			}

			outcomes := fallback.ClassifyAll(outputs)
			reply := fallback.Decide(outcomes)
			logger.Debug().Int("outputs", len(outputs)).Str("rule", string(reply.Rule)).Msg("Fallback decided")

			if outputJSON {
				kinds := make([]string, 0, len(outcomes))
				for _, o := range outcomes {
					kinds = append(kinds, string(o.Kind()))
				}
				return ui.JSON(map[string]interface{}{
					"outcomes": kinds,
					"rule":     reply.Rule,
					"text":     reply.Text,
				})
			}
			ui.Text(reply.Text)
			return nil
		},
	}
	return cmd
}

// withService opens the app for a cart or checkout command.
func withService(fn func(ctx context.Context, svc *assistant.Service) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if devMode {
		ui.Info("Dev mode: carts live only for this process")
	}
	return fn(ctx, a.Service)
}

func printText(text string) error {
	if outputJSON {
		return ui.JSON(map[string]string{"text": text})
	}
	ui.Text(text)
	return nil
}

// readBlocks splits r into blank-line separated blocks.
func readBlocks(r io.Reader) ([]string, error) {
	var (
		blocks  []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return blocks, nil
}
