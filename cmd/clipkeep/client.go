package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vertextoedge/clipkeep/internal/config"
	"github.com/vertextoedge/clipkeep/internal/domain"
	"github.com/vertextoedge/clipkeep/internal/service/server"
)

var (
	listCategory string
	listSearch   string
	listLimit    int
)

func newClient() (*server.Client, error) {
	addr := apiAddr
	if addr == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		addr = cfg.HTTP.BindAddr
	}
	return server.NewClient(addr), nil
}

func withClient(fn func(ctx context.Context, c *server.Client) error) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return fn(ctx, c)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List history entries, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *server.Client) error {
			resp, err := c.List(ctx, listCategory, listSearch)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tPINNED\tCAPTURED\tCONTENT")
			for i, item := range resp.Items {
				if listLimit > 0 && i >= listLimit {
					break
				}
				pinned := ""
				if item.Pinned {
					pinned = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					item.ID, item.Kind, pinned, humanize.Time(item.CreatedAt), preview(item.Entry))
			}
			return w.Flush()
		})
	},
}

var pinCmd = &cobra.Command{
	Use:   "pin <id>",
	Short: "Toggle the pinned flag of an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *server.Client) error {
			item, err := c.TogglePin(ctx, args[0])
			if err != nil {
				return err
			}
			state := "unpinned"
			if item.Pinned {
				state = "pinned"
			}
			fmt.Printf("%s %s\n", item.ID, state)
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>...",
	Short: "Remove entries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *server.Client) error {
			for _, id := range args {
				if err := c.Remove(ctx, id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
			}
			return nil
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry, pinned ones included",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *server.Client) error {
			n, err := c.Clear(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d entries\n", n)
			return nil
		})
	},
}

var copyCmd = &cobra.Command{
	Use:   "copy <id>",
	Short: "Write an entry back to the clipboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *server.Client) error {
			return c.Copy(ctx, args[0])
		})
	},
}

func init() {
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "all, text, image, file or favorites")
	listCmd.Flags().StringVarP(&listSearch, "search", "q", "", "case-insensitive substring filter")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "show at most n entries")
}

// preview returns a single-line, bounded rendering of an entry's content
func preview(e domain.Entry) string {
	s := strings.Join(strings.Fields(e.Content), " ")
	if r := []rune(s); len(r) > 60 {
		s = string(r[:57]) + "..."
	}
	return s
}
