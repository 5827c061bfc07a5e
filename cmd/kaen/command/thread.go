package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/kaen/internal/store"
	"github.com/emilythestrangee/kaen/internal/thread"
)

const (
	enterAltScreen = "\x1b[?1049h"
	leaveAltScreen = "\x1b[?1049l"
	clearScreen    = "\x1b[H\x1b[2J"
)

var threadCmd = &cobra.Command{
	Use:   "thread",
	Short: "Read a post's comment thread",
}

var showThreadCmd = &cobra.Command{
	Use:   "show [post-id]",
	Short: "Print the thread once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := parseID("post", args[0])
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		v, err := variant()
		if err != nil {
			return err
		}
		c, viewer, err := client()
		if err != nil {
			return err
		}
		return showThread(cmd.Context(), cmd.OutOrStdout(), c, postID, viewer, v, format)
	},
}

var watchThreadCmd = &cobra.Command{
	Use:   "watch [post-id]",
	Short: "Keep the thread on screen and redraw it as it changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := parseID("post", args[0])
		if err != nil {
			return err
		}
		v, err := variant()
		if err != nil {
			return err
		}
		every, _ := cmd.Flags().GetDuration("poll")
		if !cmd.Flags().Changed("poll") && v.Policy.Polling() {
			every = cfg.PollInterval
		}
		c, viewer, err := client()
		if err != nil {
			return err
		}
		return watchThread(cmd.Context(), cmd.OutOrStdout(), c, postID, viewer, v, every)
	},
}

func init() {
	showThreadCmd.Flags().StringP("format", "f", "text", "output format: text, html or json")
	watchThreadCmd.Flags().Duration("poll", 0, "refresh interval (default POLL_INTERVAL for polling variants)")

	threadCmd.AddCommand(showThreadCmd, watchThreadCmd)
	rootCmd.AddCommand(threadCmd)
}

func parseID(what, s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID %q", what, s)
	}
	return id, nil
}

// showThread loads the thread once without polling and writes it out.
func showThread(ctx context.Context, w io.Writer, st store.CommentStore, postID int, viewer *thread.Viewer, v thread.Variant, format string) error {
	view, err := thread.Mount(ctx, postID, viewer, st, thread.WithVariant(v), thread.WithPolicy(thread.Policy{}))
	if err != nil {
		return err
	}
	defer view.Close()

	page := view.Page()
	switch format {
	case "text", "":
		return thread.RenderText(w, page)
	case "html":
		return thread.RenderHTML(w, page)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(page)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// watchThread redraws the thread after every applied fetch until ctx ends.
// A scroll locking variant runs on the alternate screen while mounted.
// every > 0 overrides the variant's poll interval.
func watchThread(ctx context.Context, w io.Writer, st store.CommentStore, postID int, viewer *thread.Viewer, v thread.Variant, every time.Duration) error {
	var mu sync.Mutex
	opts := []thread.Option{thread.WithVariant(v)}
	if every > 0 {
		opts = append(opts, thread.WithPolicy(thread.Policy{PollInterval: every}))
	}
	if v.LockScroll {
		opts = append(opts, thread.WithScrollLock(thread.NewScrollLock(func(locked bool) {
			mu.Lock()
			defer mu.Unlock()
			if locked {
				fmt.Fprint(w, enterAltScreen)
			} else {
				fmt.Fprint(w, leaveAltScreen)
			}
		})))
	}

	view, err := thread.Mount(ctx, postID, viewer, st, opts...)
	if err != nil {
		return err
	}
	defer view.Close()

	draw := func(page thread.Page) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprint(w, clearScreen)
		_ = thread.RenderText(w, page)
	}
	unsubscribe := view.Subscribe(draw)
	defer unsubscribe()

	draw(view.Page())
	<-ctx.Done()
	return nil
}
