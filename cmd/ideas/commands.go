package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/letieu/idea-store/internal/database"
	"github.com/letieu/idea-store/internal/ideas"
	"github.com/letieu/idea-store/internal/notify"
)

type rootOptions struct {
	noColor bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ideas",
		Short: "Manage content ideas stored in Supabase or Turso",
		Long: `Manage content ideas stored in Supabase or Turso.

Configuration is read from config.yaml (in . or ./config) and the
environment: SUPABASE_URL, SUPABASE_ANON_KEY, or BACKEND_TYPE=libsql
with LIBSQL_URL and LIBSQL_TOKEN.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !opts.verbose {
				log.SetOutput(io.Discard)
			} else {
				log.SetOutput(cmd.ErrOrStderr())
			}
		},
	}

	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log backend errors to stderr")

	root.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newUpdateCmd(opts),
		newRemoveCmd(opts),
		newUseCmd(opts),
		newPingCmd(),
	)
	return root
}

// withStore opens the backend, loads every idea and hands the store to fn.
func withStore(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, s *ideas.Store) error) error {
	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s := ideas.Open(ctx, b.ideas, notify.NewConsole(cmd.ErrOrStderr(), opts.noColor))
	if msg := s.Err(); msg != "" {
		return fmt.Errorf("load ideas: %s", msg)
	}
	return fn(ctx, s)
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var raw bool
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ideas, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, s *ideas.Store) error {
				list := s.Ideas()
				if status != "" {
					filtered := list[:0]
					for _, idea := range list {
						if deref(idea.Status) == status {
							filtered = append(filtered, idea)
						}
					}
					list = filtered
				}

				out := cmd.OutOrStdout()
				if raw {
					printer := pp.New()
					printer.SetOutput(out)
					printer.SetColoringEnabled(!opts.noColor)
					_, err := printer.Println(list)
					return err
				}
				return printTable(out, list)
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "dump full rows")
	cmd.Flags().StringVar(&status, "status", "", "only show ideas with this status")
	return cmd
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		priority float64
		status   string
		userID   int64
	)

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Create an idea",
		Long: `Create an idea. Status defaults to "new" and priority to 0.5.

Examples:
  ideas add "Thread: what we learned moving to Go generics"
  ideas add "Carousel on pricing pages" --priority 0.8`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := database.IdeaInsert{Content: database.Ptr(strings.Join(args, " "))}
			if cmd.Flags().Changed("priority") {
				in.PriorityScore = &priority
			}
			if cmd.Flags().Changed("status") {
				in.Status = &status
			}
			if cmd.Flags().Changed("user") {
				in.UserID = &userID
			}

			return withStore(cmd, opts, func(ctx context.Context, s *ideas.Store) error {
				idea, err := s.Create(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), idea.ID)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&priority, "priority", database.DefaultPriorityScore, "priority score between 0 and 1")
	cmd.Flags().StringVar(&status, "status", database.StatusNew, "initial status")
	cmd.Flags().Int64Var(&userID, "user", 0, "owning user id")
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		content  string
		priority float64
		status   string
		userID   int64
		nullCols []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an idea",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var patch database.IdeaUpdate
			if cmd.Flags().Changed("content") {
				patch.Content = &content
			}
			if cmd.Flags().Changed("priority") {
				patch.PriorityScore = &priority
			}
			if cmd.Flags().Changed("status") {
				patch.Status = &status
			}
			if cmd.Flags().Changed("user") {
				patch.UserID = &userID
			}
			patch.Null = nullCols
			if patch.IsZero() {
				return fmt.Errorf("one of --content, --priority, --status, --user or --clear is required")
			}

			return withStore(cmd, opts, func(ctx context.Context, s *ideas.Store) error {
				_, err := s.Update(ctx, id, patch)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&content, "content", "", "new content")
	cmd.Flags().Float64Var(&priority, "priority", 0, "new priority score")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().Int64Var(&userID, "user", 0, "new owning user id")
	cmd.Flags().StringSliceVar(&nullCols, "clear", nil, "columns to set to null (user_id, content, priority_score, used_at, status)")
	return cmd
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an idea",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd, opts, func(ctx context.Context, s *ideas.Store) error {
				return s.Delete(ctx, id)
			})
		},
	}
}

func newUseCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>...",
		Short: "Mark ideas as used",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := parseID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return withStore(cmd, opts, func(ctx context.Context, s *ideas.Store) error {
				return s.MarkUsed(ctx, ids)
			})
		},
	}
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the backend connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer b.close()

			if err := b.ping(cmd.Context()); err != nil {
				return fmt.Errorf("backend connection failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "backend connection successful")
			return nil
		},
	}
}

func printTable(w io.Writer, list []database.Idea) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tPRIORITY\tCONTENT")
	for _, idea := range list {
		priority := "-"
		if idea.PriorityScore != nil {
			priority = strconv.FormatFloat(*idea.PriorityScore, 'f', 2, 64)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			idea.ID,
			idea.CreatedAt.UTC().Format("2006-01-02 15:04"),
			deref(idea.Status),
			priority,
			truncate(deref(idea.Content), 60),
		)
	}
	return tw.Flush()
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid idea id %q", s)
	}
	return id, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
