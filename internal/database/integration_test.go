package database

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/emilythestrangee/kaen/internal/config"
	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/store"
	"github.com/emilythestrangee/kaen/internal/thread"
)

var (
	svc   Service
	rawDB *sql.DB
)

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		log.Println("skipping postgres integration tests in short mode")
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := setup(ctx)
	if err != nil {
		// no docker: the integration tests skip themselves
		log.Printf("postgres container unavailable: %s", err)
	}

	code := m.Run()

	if svc != nil {
		if err := svc.Close(); err != nil {
			log.Printf("failed to close database: %s", err)
		}
	}
	if rawDB != nil {
		rawDB.Close()
	}
	if container != nil {
		if err := container.Terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
	os.Exit(code)
}

func setup(ctx context.Context) (c *postgres.PostgresContainer, err error) {
	defer func() {
		// testcontainers panics when no docker host can be found
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	cfg := config.DB{User: "kaen", Password: "password", Name: "kaen", SSLMode: "disable"}
	c, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(cfg.Name),
		postgres.WithUsername(cfg.User),
		postgres.WithPassword(cfg.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	port, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return c, err
	}
	host, err := c.Host(ctx)
	if err != nil {
		return c, err
	}
	cfg.Host, cfg.Port = host, port.Port()

	if svc, err = New(cfg, "warn"); err != nil {
		return c, err
	}

	connStr, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return c, err
	}
	if rawDB, err = sql.Open("postgres", connStr); err != nil {
		return c, err
	}
	return c, rawDB.PingContext(ctx)
}

func requireDB(t *testing.T) {
	t.Helper()
	if svc == nil || rawDB == nil {
		t.Skip("postgres not available")
	}
}

var seq atomic.Int64

type fixture struct {
	users    *UserRepository
	posts    *PostRepository
	comments *CommentRepository
	votes    *VoteRepository
}

func newFixture(t *testing.T) fixture {
	requireDB(t)
	db := svc.GetDB()
	return fixture{
		users:    NewUserRepository(db),
		posts:    NewPostRepository(db),
		comments: NewCommentRepository(db),
		votes:    NewVoteRepository(db),
	}
}

func (f fixture) user(t *testing.T) *models.User {
	t.Helper()
	n := seq.Add(1)
	u := &models.User{
		Username:    fmt.Sprintf("user%d", n),
		Email:       fmt.Sprintf("user%d@example.com", n),
		Password:    "hash",
		DisplayName: fmt.Sprintf("User %d", n),
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f fixture) post(t *testing.T, author *models.User) *models.Post {
	t.Helper()
	p := &models.Post{Title: "a post", Content: "body", AuthorID: author.ID}
	require.NoError(t, f.posts.Create(context.Background(), p))
	return p
}

func (f fixture) comment(t *testing.T, post *models.Post, author *models.User, parent *int, content string) *models.Comment {
	t.Helper()
	c, err := f.comments.CreateComment(context.Background(), models.NewComment{
		PostID:            post.ID,
		ParentCommentID:   parent,
		Content:           content,
		AuthorID:          author.ID,
		AuthorDisplayName: author.Name(),
	})
	require.NoError(t, err)
	return c
}

func TestCommentRepository_ListOrderAndTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t)
	post := f.post(t, alice)

	root := f.fixtureThread(t, post, alice)

	list, err := f.comments.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt.Before(list[i-1].CreatedAt))
	}

	tree := thread.BuildCommentTree(list)
	require.Len(t, tree, 2)
	assert.Equal(t, root.ID, tree[0].Item.ID)
	assert.Len(t, tree[0].Children, 2)
	assert.Equal(t, 4, thread.Count(tree))
}

// fixtureThread creates root, root2 and two replies to root.
func (f fixture) fixtureThread(t *testing.T, post *models.Post, author *models.User) *models.Comment {
	t.Helper()
	root := f.comment(t, post, author, nil, "root")
	f.comment(t, post, author, nil, "second root")
	f.comment(t, post, author, &root.ID, "first reply")
	f.comment(t, post, author, &root.ID, "second reply")
	return root
}

func TestCommentRepository_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t)
	post := f.post(t, alice)
	other := f.post(t, alice)
	foreign := f.comment(t, other, alice, nil, "elsewhere")

	base := models.NewComment{PostID: post.ID, Content: "hi", AuthorID: alice.ID, AuthorDisplayName: "alice"}

	blank := base
	blank.Content = "  "
	_, err := f.comments.CreateComment(ctx, blank)
	assert.ErrorIs(t, err, store.ErrValidation)

	anon := base
	anon.AuthorID = 0
	_, err = f.comments.CreateComment(ctx, anon)
	assert.ErrorIs(t, err, store.ErrAuth)

	wrongParent := base
	wrongParent.ParentCommentID = &foreign.ID
	_, err = f.comments.CreateComment(ctx, wrongParent)
	assert.ErrorIs(t, err, store.ErrNotFound)

	missingPost := base
	missingPost.PostID = 999999
	_, err = f.comments.CreateComment(ctx, missingPost)
	assert.ErrorIs(t, err, store.ErrNotFound)

	exists, err := f.comments.PostExists(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = f.comments.PostExists(ctx, missingPost.PostID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCommentRepository_UpdateAndIdempotentDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t)
	post := f.post(t, alice)
	root := f.fixtureThread(t, post, alice)

	require.NoError(t, f.comments.UpdateCommentContent(ctx, root.ID, "edited root"))
	got, err := f.comments.GetComment(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited root", got.Content)
	assert.ErrorIs(t, f.comments.UpdateCommentContent(ctx, root.ID, ""), store.ErrValidation)

	require.NoError(t, f.comments.DeleteComment(ctx, root.ID))
	first, err := f.comments.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.NoError(t, f.comments.DeleteComment(ctx, root.ID))
	second, err := f.comments.ListComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, second, 3)

	assert.ErrorIs(t, f.comments.UpdateCommentContent(ctx, root.ID, "too late"), store.ErrNotFound)
	_, err = f.comments.GetComment(ctx, root.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// the replies of the deleted root are orphans and surface as roots
	tree := thread.BuildCommentTree(second)
	assert.Len(t, tree, 3)
}

func TestCommentRepository_OrphanRowsAreKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t)
	post := f.post(t, alice)
	f.comment(t, post, alice, nil, "root")

	_, err := rawDB.ExecContext(ctx,
		`INSERT INTO comments (post_id, parent_comment_id, content, author_id, author_display_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`,
		post.ID, 987654, "reply to a vanished comment", alice.ID, alice.Name())
	require.NoError(t, err)

	list, err := f.comments.ListComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	tree := thread.BuildCommentTree(list)
	require.Len(t, tree, 2)
	assert.Equal(t, "reply to a vanished comment", tree[1].Item.Content)
}

func TestVoteRepository_Toggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t), f.user(t)
	post := f.post(t, alice)
	c := f.comment(t, post, alice, nil, "vote on me")

	res, err := f.votes.ToggleCommentVote(ctx, bob.ID, c.ID, models.Upvote)
	require.NoError(t, err)
	assert.Equal(t, models.VoteRecorded, res)
	_, err = f.votes.ToggleCommentVote(ctx, alice.ID, c.ID, models.Downvote)
	require.NoError(t, err)

	got, err := f.comments.GetComment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Upvotes)
	assert.Equal(t, 1, got.Downvotes)

	res, err = f.votes.ToggleCommentVote(ctx, bob.ID, c.ID, models.Downvote)
	require.NoError(t, err)
	assert.Equal(t, models.VoteUpdated, res)
	res, err = f.votes.ToggleCommentVote(ctx, bob.ID, c.ID, models.Downvote)
	require.NoError(t, err)
	assert.Equal(t, models.VoteRemoved, res)

	res, err = f.votes.TogglePostVote(ctx, bob.ID, post.ID, models.Upvote)
	require.NoError(t, err)
	assert.Equal(t, models.VoteRecorded, res)
	p, err := f.posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Upvotes)
	assert.Equal(t, 1, p.Comments)

	_, err = f.votes.ToggleCommentVote(ctx, bob.ID, 999999, models.Upvote)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.votes.TogglePostVote(ctx, bob.ID, post.ID, 3)
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestPostRepository_OwnershipAndCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t), f.user(t)
	post := f.post(t, alice)
	root := f.fixtureThread(t, post, alice)
	_, err := f.votes.ToggleCommentVote(ctx, bob.ID, root.ID, models.Upvote)
	require.NoError(t, err)

	title := "renamed"
	_, err = f.posts.Update(ctx, post.ID, bob.ID, models.UpdatePostRequest{Title: &title})
	assert.ErrorIs(t, err, store.ErrForbidden)
	updated, err := f.posts.Update(ctx, post.ID, alice.ID, models.UpdatePostRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, alice.ID, updated.Author.ID)

	mine, err := f.posts.ListByAuthor(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, post.ID, mine[0].ID)
	theirs, err := f.posts.ListByAuthor(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	assert.ErrorIs(t, f.posts.Delete(ctx, post.ID, bob.ID), store.ErrForbidden)
	require.NoError(t, f.posts.Delete(ctx, post.ID, alice.ID))
	assert.ErrorIs(t, f.posts.Delete(ctx, post.ID, alice.ID), store.ErrNotFound)

	list, err := f.comments.ListComments(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	var votes int
	require.NoError(t, rawDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE comment_id = $1`, root.ID).Scan(&votes))
	assert.Zero(t, votes)
}

func TestUserAndCommunityRepositories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t)

	dup := &models.User{Username: alice.Username, Email: "other@example.com", Password: "x"}
	assert.ErrorIs(t, f.users.Create(ctx, dup), ErrDuplicate)

	byEmail, err := f.users.ByEmail(ctx, alice.Email)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)
	_, err = f.users.ByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	updated, err := f.users.UpdateProfile(ctx, alice.ID, models.UpdateProfileRequest{DisplayName: "Alice", Bio: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.Name())

	communities := NewCommunityRepository(svc.GetDB())
	name := fmt.Sprintf("golang%d", seq.Add(1))
	require.NoError(t, communities.Create(ctx, &models.Community{Name: name, CreatedBy: alice.ID}))
	assert.ErrorIs(t, communities.Create(ctx, &models.Community{Name: name, CreatedBy: alice.ID}), ErrDuplicate)

	all, err := communities.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func TestService_Health(t *testing.T) {
	requireDB(t)
	health := svc.Health()
	assert.Equal(t, "up", health["status"])
	assert.Contains(t, health, "open_connections")
}
