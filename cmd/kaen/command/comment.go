package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/kaen/internal/store"
	"github.com/emilythestrangee/kaen/internal/thread"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Comment management commands",
	Long:  `Add comments and replies to a post's thread, and edit or delete your own.`,
}

var addCommentCmd = &cobra.Command{
	Use:   "add [post-id] [content]",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := parseID("post", args[0])
		if err != nil {
			return err
		}
		return withThread(cmd, postID, func(ctx context.Context, w io.Writer, view *thread.View) error {
			return addComment(ctx, w, view, strings.Join(args[1:], " "))
		})
	},
}

var replyCommentCmd = &cobra.Command{
	Use:   "reply [post-id] [comment-id] [content]",
	Short: "Reply to a comment",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, commentID, err := parseIDs(args)
		if err != nil {
			return err
		}
		return withThread(cmd, postID, func(ctx context.Context, w io.Writer, view *thread.View) error {
			return replyComment(ctx, w, view, commentID, strings.Join(args[2:], " "))
		})
	},
}

var editCommentCmd = &cobra.Command{
	Use:   "edit [post-id] [comment-id] [content]",
	Short: "Replace the text of your comment",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, commentID, err := parseIDs(args)
		if err != nil {
			return err
		}
		return withThread(cmd, postID, func(ctx context.Context, w io.Writer, view *thread.View) error {
			return editComment(ctx, w, view, commentID, strings.Join(args[2:], " "))
		})
	},
}

var deleteCommentCmd = &cobra.Command{
	Use:   "delete [post-id] [comment-id]",
	Short: "Delete your comment; its replies stay",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, commentID, err := parseIDs(args)
		if err != nil {
			return err
		}
		return withThread(cmd, postID, func(ctx context.Context, w io.Writer, view *thread.View) error {
			return deleteComment(ctx, w, view, commentID)
		})
	},
}

func init() {
	commentCmd.AddCommand(addCommentCmd, replyCommentCmd, editCommentCmd, deleteCommentCmd)
	rootCmd.AddCommand(commentCmd)
}

func parseIDs(args []string) (postID, commentID int, err error) {
	if postID, err = parseID("post", args[0]); err != nil {
		return 0, 0, err
	}
	if commentID, err = parseID("comment", args[1]); err != nil {
		return 0, 0, err
	}
	return postID, commentID, nil
}

// withThread mounts the post's thread for the saved session without
// polling and runs fn against it.
func withThread(cmd *cobra.Command, postID int, fn func(context.Context, io.Writer, *thread.View) error) error {
	c, viewer, err := client()
	if err != nil {
		return err
	}
	if viewer == nil {
		return errors.New(`not signed in, run "kaen login" first`)
	}
	return runOnThread(cmd.Context(), cmd.OutOrStdout(), c, postID, viewer, fn)
}

func runOnThread(ctx context.Context, w io.Writer, st store.CommentStore, postID int, viewer *thread.Viewer, fn func(context.Context, io.Writer, *thread.View) error) error {
	view, err := thread.Mount(ctx, postID, viewer, st, thread.WithPolicy(thread.Policy{}))
	if err != nil {
		return err
	}
	defer view.Close()

	if snap := view.Snapshot(); snap.Err != nil {
		if errors.Is(snap.Err, store.ErrNotFound) {
			return fmt.Errorf("post %d not found", postID)
		}
		return fmt.Errorf("couldn't load post %d: %s", postID, thread.Message(snap.Err))
	}
	return fn(ctx, w, view)
}

// failure turns a controller error into what the user reads.
func failure(what string, err error) error {
	return fmt.Errorf("%s: %s", what, thread.Message(err))
}

func addComment(ctx context.Context, w io.Writer, view *thread.View, content string) error {
	created, err := view.Post(ctx, content)
	if err != nil {
		return failure("comment not posted", err)
	}
	fmt.Fprintf(w, "✓ Comment %d posted\n", created.ID)
	return nil
}

func replyComment(ctx context.Context, w io.Writer, view *thread.View, commentID int, content string) error {
	ctrl, err := view.Controller(commentID)
	if err != nil {
		return failure("reply not posted", store.ErrNotFound)
	}
	if err := ctrl.OpenReply(); err != nil {
		return failure("reply not posted", err)
	}
	if err := ctrl.SetReplyDraft(content); err != nil {
		return failure("reply not posted", err)
	}
	created, err := ctrl.SubmitReply(ctx)
	if err != nil {
		return failure("reply not posted", err)
	}
	fmt.Fprintf(w, "✓ Reply %d posted under comment %d\n", created.ID, commentID)
	return nil
}

func editComment(ctx context.Context, w io.Writer, view *thread.View, commentID int, content string) error {
	ctrl, err := view.Controller(commentID)
	if err != nil {
		return failure("comment not updated", store.ErrNotFound)
	}
	if err := ctrl.BeginEdit(); err != nil {
		return failure("comment not updated", err)
	}
	if err := ctrl.SetEditDraft(content); err != nil {
		return failure("comment not updated", err)
	}
	if err := ctrl.SaveEdit(ctx); err != nil {
		return failure("comment not updated", err)
	}
	fmt.Fprintf(w, "✓ Comment %d updated\n", commentID)
	return nil
}

func deleteComment(ctx context.Context, w io.Writer, view *thread.View, commentID int) error {
	ctrl, err := view.Controller(commentID)
	if errors.Is(err, thread.ErrUnknownComment) {
		fmt.Fprintf(w, "✓ Comment %d is already gone\n", commentID)
		return nil
	}
	if err != nil {
		return failure("comment not deleted", err)
	}
	if err := ctrl.ArmDelete(); err != nil {
		return failure("comment not deleted", err)
	}
	if err := ctrl.ConfirmDelete(ctx); err != nil {
		return failure("comment not deleted", err)
	}
	fmt.Fprintf(w, "✓ Comment %d deleted\n", commentID)
	return nil
}
