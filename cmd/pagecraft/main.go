package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pagecraft/internal/app"
	"pagecraft/internal/config"
	"pagecraft/internal/domain"
	"pagecraft/internal/logging"
	"pagecraft/internal/registry"
)

var version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pagecraft",
	Short: "pagecraft - block composition editor for landing pages",
	Long: `pagecraft stores landing pages as trees of typed blocks and edits them
through an MCP server, so AI agents can build pages and answer revision
comments left on individual blocks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP server on stdin/stdout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return withApp(ctx, func(a *app.App) error {
			srv := a.MCPServer(version)
			return a.Run(ctx, srv.ServeStdio)
		})
	},
}

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "List pages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			pages, err := a.Editor.ListPages(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tUPDATED")
			for _, p := range pages {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Create, inspect and delete pages",
}

var pageCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an empty page",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			p, err := a.Editor.CreatePage(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		})
	},
}

var pageShowJSON bool

var pageShowCmd = &cobra.Command{
	Use:   "show [page-id]",
	Short: "Print the block tree of a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			c, err := a.Editor.Composition(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if pageShowJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(c)
			}
			fmt.Fprintf(out, "page %s (version %d)\n", c.PageID, c.Version)
			printTree(out, c, c.RootOrder, 1)
			return nil
		})
	},
}

var pageDeleteCmd = &cobra.Command{
	Use:   "delete [page-id]",
	Short: "Delete a page with its comments and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			return a.Editor.DeletePage(cmd.Context(), args[0])
		})
	},
}

var blocksCategory string

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List the block types pages can be built from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.Default()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "TYPE\tCATEGORY\tNAME\tCHILDREN")
		defs := reg.All()
		if blocksCategory != "" {
			defs = reg.ListByCategory(blocksCategory)
		}
		for d := range defs {
			children := "-"
			if d.AcceptsChildren() {
				children = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Type, d.Category, d.Name, children)
		}
		return w.Flush()
	},
}

var variantsCmd = &cobra.Command{
	Use:   "variants [block-type]",
	Short: "List the content variants of a block type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTAGS")
			for _, v := range a.Editor.Variants().VariantsFor(domain.BlockType(args[0])) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", v.ID, v.Name, strings.Join(v.Tags, ","))
			}
			return w.Flush()
		})
	},
}

var commentsStatus []string

var commentsCmd = &cobra.Command{
	Use:   "comments [page-id]",
	Short: "List the revision comments of a page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			statuses := make([]domain.CommentStatus, 0, len(commentsStatus))
			for _, s := range commentsStatus {
				statuses = append(statuses, domain.CommentStatus(s))
			}
			comments, err := a.Revisions.Comments(cmd.Context(), args[0], statuses...)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tBLOCK\tSTATUS\tTEXT")
			for _, c := range comments {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.ID, c.BlockID, c.Status, c.Text)
			}
			return w.Flush()
		})
	},
}

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Prune undo history and report stuck comments once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			rep, err := a.Maintenance.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d undo node(s), %d stuck comment(s)\n", rep.Pruned, len(rep.Stuck))
			return nil
		})
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write the effective configuration to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cfg.Save(args[0])
	},
}

func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a := app.New(cfg, logger)
	if err := a.Startup(ctx); err != nil {
		return err
	}
	defer a.Shutdown(context.WithoutCancel(ctx))
	return fn(a)
}

func printTree(w io.Writer, c domain.Composition, ids []string, depth int) {
	for _, id := range ids {
		b, ok := c.Blocks[id]
		if !ok {
			continue
		}
		label := ""
		if title, ok := b.Props["title"].(string); ok {
			label = fmt.Sprintf(" %q", title)
		}
		fmt.Fprintf(w, "%s%s %s%s\n", strings.Repeat("  ", depth), b.Type, b.ID, label)
		printTree(w, c, b.Children, depth+1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	pageShowCmd.Flags().BoolVar(&pageShowJSON, "json", false, "Print the composition as JSON")
	pageCmd.AddCommand(pageCreateCmd, pageShowCmd, pageDeleteCmd)

	blocksCmd.Flags().StringVar(&blocksCategory, "category", "", "Only list types in this category")
	commentsCmd.Flags().StringSliceVar(&commentsStatus, "status", nil, "Filter by status (draft, pending, processing, resolved)")

	rootCmd.AddCommand(mcpCmd, pagesCmd, pageCmd, blocksCmd, variantsCmd, commentsCmd, maintenanceCmd, configInitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
