package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/emilythestrangee/kaen/internal/apiclient"
	"github.com/emilythestrangee/kaen/internal/config"
	"github.com/emilythestrangee/kaen/internal/logger"
	"github.com/emilythestrangee/kaen/internal/models"
)

type options struct {
	users    int
	posts    int
	comments int
	// replyRate is the chance a comment answers an earlier one.
	replyRate float64
	seed      int64
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Initialize(cfg.LogLevel, false)

	var opts options
	api := flag.String("api", cfg.APIURL, "API server URL")
	flag.IntVar(&opts.users, "users", 5, "accounts to register")
	flag.IntVar(&opts.posts, "posts", 3, "posts to create")
	flag.IntVar(&opts.comments, "comments", 20, "comments per post")
	flag.Float64Var(&opts.replyRate, "reply-rate", 0.6, "share of comments that are replies")
	flag.Int64Var(&opts.seed, "seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *api, opts); err != nil {
		logger.Log.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}

type account struct {
	client *apiclient.Client
	user   models.User
}

func run(ctx context.Context, api string, opts options) error {
	faker := gofakeit.New(opts.seed)
	if opts.users < 1 {
		return fmt.Errorf("need at least one user")
	}

	accounts := make([]account, 0, opts.users)
	for i := 0; i < opts.users; i++ {
		c := apiclient.New(api)
		resp, err := c.Register(ctx, models.RegisterRequest{
			Username:    fmt.Sprintf("%s%d", faker.Username(), faker.Number(10, 99)),
			Email:       faker.Email(),
			Password:    "password123",
			DisplayName: faker.Name(),
			Avatar:      strconv.Itoa(faker.Number(1, 6)),
		})
		if err != nil {
			return fmt.Errorf("register user %d: %w", i+1, err)
		}
		accounts = append(accounts, account{client: c, user: resp.User})
		logger.Log.Info("✅ Registered user", "id", resp.User.ID, "username", resp.User.Username)
	}

	community, err := accounts[0].client.CreateCommunity(ctx, models.CreateCommunityRequest{
		Name:        fmt.Sprintf("%s%d", faker.Word(), faker.Number(100, 999)),
		Description: faker.Sentence(8),
	})
	if err != nil {
		return fmt.Errorf("create community: %w", err)
	}
	logger.Log.Info("✅ Created community", "id", community.ID, "name", community.Name)

	for p := 0; p < opts.posts; p++ {
		author := accounts[faker.Number(0, len(accounts)-1)]
		post, err := author.client.CreatePost(ctx, models.CreatePostRequest{
			Title:       faker.Sentence(6),
			Content:     faker.Paragraph(2, 3, 12, "\n\n"),
			CommunityID: &community.ID,
		})
		if err != nil {
			return fmt.Errorf("create post: %w", err)
		}

		var ids []int
		for n := 0; n < opts.comments; n++ {
			commenter := accounts[faker.Number(0, len(accounts)-1)]
			created, err := commenter.client.CreateComment(ctx, models.NewComment{
				PostID:            post.ID,
				ParentCommentID:   pickParent(faker, ids, opts.replyRate),
				Content:           faker.Paragraph(1, faker.Number(1, 3), 10, " "),
				AuthorID:          commenter.user.ID,
				AuthorDisplayName: commenter.user.Name(),
				AuthorAvatarURL:   commenter.user.Avatar,
			})
			if err != nil {
				return fmt.Errorf("comment on post %d: %w", post.ID, err)
			}
			ids = append(ids, created.ID)
		}
		logger.Log.Info("✅ Seeded post", "id", post.ID, "comments", len(ids))
	}
	return nil
}

// pickParent returns one of ids with probability rate, favouring recent
// comments so threads grow deep rather than wide.
func pickParent(faker *gofakeit.Faker, ids []int, rate float64) *int {
	if len(ids) == 0 || faker.Float64Range(0, 1) >= rate {
		return nil
	}
	lo := len(ids) / 2
	parent := ids[faker.Number(lo, len(ids)-1)]
	return &parent
}
