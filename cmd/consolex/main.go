package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/coolbeans/consolex/pkg/amend"
	"github.com/coolbeans/consolex/pkg/consolidate"
	"github.com/coolbeans/consolex/pkg/query"
	"github.com/coolbeans/consolex/pkg/seed"
	"github.com/coolbeans/consolex/pkg/store"
	"github.com/coolbeans/consolex/pkg/types"
	"github.com/coolbeans/consolex/pkg/watch"
)

var version = "0.1.0"

var dbPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "consolex",
		Short: "Point-in-time legal code consolidation",
		Long: `Consolex maintains the consolidated text of a legal code over time.

It parses amendment acts written in the recognized drafting conventions,
applies them to per-article version chains, and answers point-in-time
questions:
  - What did Article 105 say on 2015-03-01?
  - What changed in the code between two dates?
  - When was an article enacted, amended, repealed, reinstated?

Every consolidation attempt is recorded in an append-only run log, and
changes the engine cannot apply safely are queued for manual review.`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "consolex.db", "path to the version store database")

	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(applyCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(asofCmd())
	rootCmd.AddCommand(articleCmd())
	rootCmd.AddCommand(diffCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withStore opens the store, runs fn, and closes it.
func withStore(fn func(s *store.Store) error) error {
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [manifest.yaml]",
		Short: "Initialize the store with a base code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, articles, err := seed.LoadManifest(args[0])
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				if err := s.Seed(code, articles); err != nil {
					return err
				}
				fmt.Printf("Seeded %s (%s) with %d articles, adopted %s\n",
					code.ID, code.Title, len(articles), code.Adopted)
				return nil
			})
		},
	}
}

func applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [act.yaml | directory]...",
		Short: "Consolidate amendment act files in effective-date order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acts, err := collectActs(args)
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				engine := consolidate.New(s)
				for _, act := range acts {
					run, err := engine.ProcessText(act.meta, act.raw)
					if err != nil {
						return err
					}
					printRun(run)
				}
				return nil
			})
		},
	}
}

type loadedAct struct {
	meta amend.ActMeta
	raw  string
}

// collectActs loads act files from the given paths, expanding directories,
// and orders them by effective date, then publication sequence, then id.
func collectActs(paths []string) ([]loadedAct, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if ext := filepath.Ext(e.Name()); ext == ".yaml" || ext == ".yml" {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
	}

	acts := make([]loadedAct, 0, len(files))
	for _, f := range files {
		meta, raw, err := seed.LoadAct(f)
		if err != nil {
			return nil, err
		}
		acts = append(acts, loadedAct{meta: meta, raw: raw})
	}

	sort.Slice(acts, func(i, j int) bool {
		a, b := acts[i].meta, acts[j].meta
		if !a.Effective.Equal(b.Effective) {
			return a.Effective.Before(b.Effective)
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.ID < b.ID
	})
	return acts, nil
}

func printRun(run types.ConsolidationRun) {
	fmt.Printf("act %s: %s (run %s)\n", run.ActID, run.Status, run.ID)
	switch run.Status {
	case types.RunDuplicate:
		fmt.Printf("  already consolidated by run %s\n", run.DuplicateOf)
	case types.RunFailed:
		fmt.Printf("  %s\n", run.Error)
	default:
		for _, o := range run.Outcomes {
			line := fmt.Sprintf("  %d. %s article %s: %s", o.Index+1, o.Kind, o.Article, o.Status)
			if o.Detail != "" {
				line += " (" + o.Detail + ")"
			}
			fmt.Println(line)
		}
	}
}

func watchCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch [inbox-dir]",
		Short: "Watch an inbox directory for delivered act files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				if metricsAddr != "" {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.Handler())
					go func() {
						if err := http.ListenAndServe(metricsAddr, mux); err != nil {
							fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
						}
					}()
					fmt.Printf("Serving metrics on %s/metrics\n", metricsAddr)
				}

				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				fmt.Printf("Watching %s for act files (ctrl-c to stop)\n", args[0])
				inbox := watch.NewInbox(args[0], consolidate.New(s))
				if err := inbox.Run(ctx); err != nil && err != context.Canceled {
					return err
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	return cmd
}

func asofCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "asof [date]",
		Short: "Reconstruct the whole code as of a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := types.ParseDate(args[0])
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				snapshot := query.NewResolver(s).Snapshot(date)
				if asJSON {
					return printJSON(snapshot)
				}

				articles := make([]string, 0, len(snapshot))
				for a := range snapshot {
					articles = append(articles, a)
				}
				sort.Strings(articles)
				for _, a := range articles {
					fmt.Printf("Article %s\n%s\n\n", a, snapshot[a])
				}
				fmt.Printf("%d articles in force on %s\n", len(articles), date)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func articleCmd() *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "article [number]",
		Short: "Show an article's text as of a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := types.ParseDate(dateStr)
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				v, err := query.NewResolver(s).AsOf(args[0], date)
				if err != nil {
					return err
				}
				fmt.Printf("Article %s as of %s (effective %s", v.Article, date, v.EffectiveFrom)
				if v.ActID != "" {
					fmt.Printf(", act %s", v.ActID)
				}
				fmt.Printf(")\n%s\n", v.Text)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", time.Now().Format("2006-01-02"), "as-of date (YYYY-MM-DD)")
	return cmd
}

func diffCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "diff [base-date] [target-date]",
		Short: "Compare the code between two dates",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := types.ParseDate(args[0])
			if err != nil {
				return err
			}
			target, err := types.ParseDate(args[1])
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				report := query.NewResolver(s).Diff(base, target)
				if asJSON {
					return printJSON(report)
				}

				fmt.Printf("Diff of %s: %s -> %s\n", report.Code, report.Base, report.Target)
				for _, d := range report.Deltas {
					fmt.Printf("  %-8s Article %s", d.Type, d.Article)
					if d.TargetActID != "" {
						fmt.Printf(" (act %s)", d.TargetActID)
					}
					fmt.Println()
				}
				fmt.Printf("%d added, %d removed, %d modified, %d unchanged\n",
					report.Added, report.Removed, report.Modified, report.Unchanged)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func timelineCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "timeline [article]",
		Short: "Show an article's legislative history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				tl, err := query.NewResolver(s).Timeline(args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(tl)
				}
				fmt.Print(tl.Render())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [article]",
		Short: "List every stored version of an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				chain, err := s.History(args[0])
				if err != nil {
					return err
				}
				for i, v := range chain {
					interval := fmt.Sprintf("[%s, ", v.EffectiveFrom)
					if v.Open() {
						interval += "open)"
					} else {
						interval += fmt.Sprintf("%s)", *v.EffectiveUntil)
					}
					fmt.Printf("%d. %s", i+1, interval)
					if v.ActID != "" {
						fmt.Printf("  act %s", v.ActID)
					}
					fmt.Printf("\n%s\n\n", v.Text)
				}
				return nil
			})
		},
	}
}

func runsCmd() *cobra.Command {
	var actID string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List consolidation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				runs := s.Runs()
				if actID != "" {
					runs = s.RunsForAct(actID)
				}
				for _, run := range runs {
					fmt.Printf("%s  %s  act %s  %s", run.Timestamp.Format(time.RFC3339), run.ID, run.ActID, run.Status)
					if run.DuplicateOf != "" {
						fmt.Printf(" (duplicate of %s)", run.DuplicateOf)
					}
					if run.ResubmissionOf != "" {
						fmt.Printf(" (resubmission of %s)", run.ResubmissionOf)
					}
					fmt.Println()
				}
				fmt.Printf("%d runs\n", len(runs))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&actID, "act", "", "only runs for this act id")
	return cmd
}

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and resolve the manual-review queue",
	}
	cmd.AddCommand(reviewListCmd())
	cmd.AddCommand(reviewResolveCmd())
	cmd.AddCommand(reviewResubmitCmd())
	return cmd
}

func reviewListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				items, err := s.ListReview(all)
				if err != nil {
					return err
				}
				for _, item := range items {
					state := "open"
					if item.Resolved {
						state = "resolved"
					}
					fmt.Printf("#%d  %s  act %s  [%s]  %s\n", item.ID, state, item.ActID, item.Kind, item.Detail)
				}
				fmt.Printf("%d items\n", len(items))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include resolved items")
	return cmd
}

func reviewResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [item-id]",
		Short: "Mark a review item resolved without reapplying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			return withStore(func(s *store.Store) error {
				if err := s.ResolveReview(id); err != nil {
					return err
				}
				fmt.Printf("Resolved review item #%d\n", id)
				return nil
			})
		},
	}
}

func reviewResubmitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resubmit [item-id] [corrected-act.yaml]",
		Short: "Resubmit a corrected act for a review item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}
			meta, raw, err := seed.LoadAct(args[1])
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				engine := consolidate.New(s)
				run, err := engine.Resubmit(id, engine.Parse(meta, raw))
				if err != nil {
					return err
				}
				printRun(run)
				return nil
			})
		},
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check every version chain for corruption",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				if err := s.Verify(); err != nil {
					return err
				}
				fmt.Printf("%d article chains verified\n", len(s.Articles()))
				return nil
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var dateStr string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the code snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := types.ParseDate(dateStr)
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				code, _ := s.Code()
				payload := struct {
					Code     types.LegalCode   `json:"code"`
					AsOf     types.Date        `json:"as_of"`
					Articles map[string]string `json:"articles"`
				}{code, date, query.NewResolver(s).Snapshot(date)}

				data, err := json.MarshalIndent(payload, "", "  ")
				if err != nil {
					return err
				}
				if output == "" {
					fmt.Println(string(data))
					return nil
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return err
				}
				fmt.Printf("Exported %d articles to %s\n", len(payload.Articles), output)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dateStr, "date", time.Now().Format("2006-01-02"), "as-of date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&output, "output", "", "write to file instead of stdout")
	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
