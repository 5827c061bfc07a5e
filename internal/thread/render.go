package thread

import (
	"bufio"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/emilythestrangee/kaen/internal/markdown"
	"github.com/emilythestrangee/kaen/internal/models"
)

// NodeView is one rendered comment with its interaction state.
type NodeView struct {
	ID          int           `json:"id"`
	PostID      int           `json:"post_id"`
	ParentID    *int          `json:"parent_comment_id,omitempty"`
	AuthorID    int           `json:"author_id"`
	AuthorName  string        `json:"author_display_name"`
	AvatarURL   string        `json:"author_avatar_url,omitempty"`
	Content     string        `json:"content"`
	ContentHTML template.HTML `json:"content_html"`
	CreatedAt   time.Time     `json:"created_at"`
	Edited      bool          `json:"edited"`
	Upvotes     int           `json:"upvotes"`
	Downvotes   int           `json:"downvotes"`
	Depth       int           `json:"depth"`
	Indent      int           `json:"indent"`
	Mode        string        `json:"mode"`
	EditDraft   string        `json:"edit_draft,omitempty"`
	Replying    bool          `json:"replying"`
	ReplyDraft  string        `json:"reply_draft,omitempty"`
	Pending     bool          `json:"pending"`
	Error       string        `json:"error,omitempty"`
	Affordances Affordances   `json:"affordances"`
	Children    []*NodeView   `json:"children"`
}

// Page is a whole rendered thread.
type Page struct {
	PostID      int         `json:"post_id"`
	Variant     string      `json:"variant"`
	ShowAvatars bool        `json:"-"`
	Loaded      bool        `json:"loaded"`
	Error       string      `json:"error,omitempty"`
	Count       int         `json:"count"`
	Version     uint64      `json:"version"`
	FetchedAt   time.Time   `json:"fetched_at"`
	CanPost     bool        `json:"can_post"`
	Roots       []*NodeView `json:"comments"`
}

// Renderer turns a snapshot into a Page using one variant.
type Renderer struct {
	variant Variant
	md      *markdown.Processor
}

// NewRenderer returns a renderer for v. md may be nil.
func NewRenderer(v Variant, md *markdown.Processor) *Renderer {
	if md == nil && v.Markdown {
		md = markdown.New()
	}
	return &Renderer{variant: v, md: md}
}

func (r *Renderer) Variant() Variant {
	return r.variant
}

// Render builds the page for snap. controllers may be nil or return nil for
// an id, in which case the node is shown in its initial state.
func (r *Renderer) Render(snap Snapshot, viewer *Viewer, controllers func(id int) *Controller) Page {
	page := Page{
		PostID:      snap.PostID,
		Variant:     r.variant.Name,
		ShowAvatars: r.variant.ShowAvatars,
		Loaded:      snap.Loaded,
		Count:       Count(snap.Tree),
		Version:     snap.Version,
		FetchedAt:   snap.FetchedAt,
		CanPost:     viewer.Authenticated(),
		Roots:       []*NodeView{},
	}
	if !snap.Loaded && snap.Err != nil {
		page.Error = "Couldn't load comments. " + Message(snap.Err)
	}
	for _, n := range snap.Tree {
		page.Roots = append(page.Roots, r.node(n, 0, viewer, controllers))
	}
	return page
}

func (r *Renderer) node(n *CommentNode, depth int, viewer *Viewer, controllers func(int) *Controller) *NodeView {
	c := n.Item

	var ctrl *Controller
	if controllers != nil {
		ctrl = controllers(c.ID)
	}
	if ctrl == nil {
		ctrl = NewController(c, viewer, nil, nil)
	}
	state := ctrl.State()

	nv := &NodeView{
		ID:          c.ID,
		PostID:      c.PostID,
		ParentID:    c.ParentCommentID,
		AuthorID:    c.AuthorID,
		AuthorName:  authorName(c),
		Content:     c.Content,
		ContentHTML: r.contentHTML(c.Content),
		CreatedAt:   c.CreatedAt,
		Edited:      c.Edited(),
		Upvotes:     c.Upvotes,
		Downvotes:   c.Downvotes,
		Depth:       depth,
		Indent:      r.variant.Indent(depth),
		Mode:        state.Mode.String(),
		EditDraft:   state.EditDraft,
		Replying:    state.Replying,
		ReplyDraft:  state.ReplyDraft,
		Pending:     state.Pending,
		Error:       Message(state.Err),
		Affordances: state.Affordances,
		Children:    make([]*NodeView, 0, len(n.Children)),
	}
	if r.variant.ShowAvatars {
		nv.AvatarURL = c.AuthorAvatarURL
	}
	for _, child := range n.Children {
		nv.Children = append(nv.Children, r.node(child, depth+1, viewer, controllers))
	}
	return nv
}

func (r *Renderer) contentHTML(content string) template.HTML {
	if r.md == nil {
		return template.HTML(markdown.Escape(content))
	}
	return template.HTML(r.md.Render(content))
}

func authorName(c models.Comment) string {
	if name := strings.TrimSpace(c.AuthorDisplayName); name != "" {
		return name
	}
	return fmt.Sprintf("user #%d", c.AuthorID)
}

// RenderText writes page as indented plain text for terminals.
func RenderText(w io.Writer, page Page) error {
	bw := bufio.NewWriter(w)
	switch {
	case page.Error != "":
		fmt.Fprintln(bw, page.Error)
	case !page.Loaded:
		fmt.Fprintln(bw, "Loading comments...")
	case len(page.Roots) == 0:
		fmt.Fprintln(bw, "No comments yet.")
	default:
		fmt.Fprintf(bw, "%d comment(s)\n\n", page.Count)
		for _, n := range page.Roots {
			writeTextNode(bw, n)
		}
	}
	return bw.Flush()
}

func writeTextNode(w io.Writer, n *NodeView) {
	pad := strings.Repeat(" ", n.Indent)
	edited := ""
	if n.Edited {
		edited = " (edited)"
	}
	fmt.Fprintf(w, "%s#%d %s · %s%s  +%d/-%d\n",
		pad, n.ID, n.AuthorName, n.CreatedAt.Local().Format("2006-01-02 15:04"), edited, n.Upvotes, n.Downvotes)

	for _, line := range strings.Split(n.Content, "\n") {
		fmt.Fprintf(w, "%s  %s\n", pad, line)
	}

	switch n.Mode {
	case Editing.String():
		fmt.Fprintf(w, "%s  [editing] %s\n", pad, n.EditDraft)
	case ConfirmingDelete.String():
		fmt.Fprintf(w, "%s  [delete this comment?]\n", pad)
	}
	if n.Replying {
		fmt.Fprintf(w, "%s  [reply] %s\n", pad, n.ReplyDraft)
	}
	if n.Pending {
		fmt.Fprintf(w, "%s  ...\n", pad)
	}
	if n.Error != "" {
		fmt.Fprintf(w, "%s  ! %s\n", pad, n.Error)
	}
	fmt.Fprintln(w)

	for _, child := range n.Children {
		writeTextNode(w, child)
	}
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"nodeOf": func(n *NodeView, avatars bool) nodeData { return nodeData{Node: n, Avatars: avatars} },
}).Parse(`<section class="comments comments-{{.Variant}}" data-post-id="{{.PostID}}">
{{- if .Error}}
<p class="comments-error">{{.Error}}</p>
{{- else if not .Loaded}}
<p class="comments-loading">Loading comments...</p>
{{- else if not .Roots}}
<p class="comments-empty">No comments yet.</p>
{{- else}}
{{- $avatars := .ShowAvatars}}
{{- range .Roots}}{{template "node" nodeOf . $avatars}}{{end}}
{{- end}}
</section>
{{define "node"}}{{$n := .Node}}
<article class="comment comment-{{$n.Mode}}" id="comment-{{$n.ID}}" style="margin-left: {{$n.Indent}}ch">
<header>
{{- if and .Avatars $n.AvatarURL}}<img class="avatar" src="{{$n.AvatarURL}}" alt="">{{end}}
<span class="author">{{$n.AuthorName}}</span>
<time datetime="{{$n.CreatedAt.Format "2006-01-02T15:04:05Z07:00"}}">{{$n.CreatedAt.Format "Jan 2, 2006 15:04"}}</time>
{{- if $n.Edited}} <span class="edited">(edited)</span>{{end}}
</header>
{{- if eq $n.Mode "editing"}}
<textarea name="content" data-comment-id="{{$n.ID}}">{{$n.EditDraft}}</textarea>
{{- else}}
<div class="content">{{$n.ContentHTML}}</div>
{{- end}}
<footer>
{{- if $n.Affordances.CanReply}}<button data-action="reply" data-comment-id="{{$n.ID}}">Reply</button>{{end}}
{{- if $n.Affordances.CanEdit}}<button data-action="edit" data-comment-id="{{$n.ID}}">Edit</button>{{end}}
{{- if $n.Affordances.CanDelete}}<button data-action="delete" data-comment-id="{{$n.ID}}">Delete</button>{{end}}
{{- if eq $n.Mode "confirming-delete"}}<button data-action="confirm-delete" data-comment-id="{{$n.ID}}"{{if not $n.Affordances.CanConfirmDelete}} disabled{{end}}>Confirm</button>{{end}}
</footer>
{{- if $n.Replying}}
<textarea name="reply" data-parent-id="{{$n.ID}}">{{$n.ReplyDraft}}</textarea>
{{- end}}
{{- if $n.Error}}<p class="comment-error">{{$n.Error}}</p>{{end}}
{{- $avatars := .Avatars}}
{{- range $n.Children}}{{template "node" nodeOf . $avatars}}{{end}}
</article>
{{- end}}`))

type nodeData struct {
	Node    *NodeView
	Avatars bool
}

// RenderHTML writes page as an HTML fragment. Comment bodies were sanitized
// when the page was rendered.
func RenderHTML(w io.Writer, page Page) error {
	return pageTemplate.Execute(w, page)
}
