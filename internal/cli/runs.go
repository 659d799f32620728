package cli

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/flowscope/flowscope/pkg/runs"
)

// runsCommand groups the run history subcommands.
func (c *CLI) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the experiment run history",
	}

	cmd.AddCommand(c.runsListCommand())
	cmd.AddCommand(c.runsShowCommand())
	cmd.AddCommand(c.runsMergeCommand())

	return cmd
}

// openRuns opens the run store at the --db path, falling back to the
// configured [runs].path.
func (c *CLI) openRuns(db string) (*runs.Store, error) {
	path := db
	if path == "" {
		cfg, err := c.loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Runs.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no run store configured: set [runs].path in %s or pass --db", defaultConfigFile)
	}
	return runs.Open(path)
}

// runsListCommand creates the "runs list" subcommand.
func (c *CLI) runsListCommand() *cobra.Command {
	var (
		db    string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openRuns(db)
			if err != nil {
				return err
			}
			defer store.Close()

			list, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				printInfo("No runs recorded")
				return nil
			}

			fmt.Println(runTable(list))
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "run store path (overrides [runs].path)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")

	return cmd
}

// runsShowCommand creates the "runs show" subcommand.
func (c *CLI) runsShowCommand() *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show one run with its metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openRuns(db)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			title := run.Details.Title
			if title == "" {
				title = run.ID
			}
			fmt.Println(StyleTitle.Render(title))
			printKeyValue("Run", run.ID)
			printKeyValue("When", run.Timestamp.Local().Format("Jan 2, 2006 15:04:05"))
			if run.GitSHA != "" {
				printKeyValue("Commit", run.GitSHA)
			}
			if run.Details.Bookmarked {
				printKeyValue("Bookmarked", StyleSuccess.Render("yes"))
			}
			if run.Details.Notes != "" {
				printKeyValue("Notes", run.Details.Notes)
			}

			if len(run.Metrics) > 0 {
				printNewline()
				nodes := make([]string, 0, len(run.Metrics))
				for node := range run.Metrics {
					nodes = append(nodes, node)
				}
				sort.Strings(nodes)

				for _, node := range nodes {
					printInfo("%s", StyleHighlight.Render(node))
					names := make([]string, 0, len(run.Metrics[node]))
					for name := range run.Metrics[node] {
						names = append(names, name)
					}
					sort.Strings(names)
					for _, name := range names {
						value := strconv.FormatFloat(run.Metrics[node][name], 'g', -1, 64)
						printDetail("%s = %s", name, StyleNumber.Render(value))
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "run store path (overrides [runs].path)")

	return cmd
}

// runsMergeCommand creates the "runs merge" subcommand.
func (c *CLI) runsMergeCommand() *cobra.Command {
	var db string

	cmd := &cobra.Command{
		Use:   "merge [other.db]",
		Short: "Merge runs from another store into this one",
		Long: `Merge runs from another store into this one.

Runs are matched by id: runs missing locally are copied over, existing runs
and their annotations are left alone. Use this to combine histories
recorded on different machines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openRuns(db)
			if err != nil {
				return err
			}
			defer store.Close()

			prog := newProgress(c.Logger)
			n, err := store.Merge(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			prog.done("Merge complete")

			printSuccess("Merged %d new runs", n)
			printDetail("Store: %s", store.Path())
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "run store path (overrides [runs].path)")

	return cmd
}

// runTable renders runs as a bordered table, newest first.
func runTable(list []runs.Run) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	rows := make([][]string, 0, len(list))
	for _, r := range list {
		mark := ""
		if r.Details.Bookmarked {
			mark = "★"
		}
		title := r.Details.Title
		if title == "" {
			title = "—"
		}
		rows = append(rows, []string{
			mark,
			r.ID,
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			shortSHA(r.GitSHA),
			title,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Run", "When", "Commit", "Title").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			switch col {
			case 0:
				return lipgloss.NewStyle().Foreground(colorYellow)
			case 2, 3:
				return lipgloss.NewStyle().Foreground(colorGray)
			default:
				return lipgloss.NewStyle().Foreground(colorWhite)
			}
		})

	return t.Render()
}

// shortSHA truncates a commit SHA for display.
func shortSHA(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
