// Package thread turns a post's flat comment list into a reply forest, keeps
// that forest in sync with the backend, and renders it with per-comment
// interaction state.
package thread

import (
	"bytes"
	"encoding/json"

	"github.com/emilythestrangee/kaen/internal/models"
)

// Node is one entry of a reply forest.
type Node[T any] struct {
	Item     T
	Children []*Node[T]
}

// CommentNode is a comment together with its direct replies.
type CommentNode = Node[models.Comment]

// Build groups items into a forest in two passes over the input. Children
// keep the relative input order, so callers pass items sorted by creation
// time. An item whose parent is missing from items (deleted, or not loaded)
// is promoted to a root instead of being dropped.
func Build[T any, K comparable](items []T, key func(T) K, parent func(T) (K, bool)) []*Node[T] {
	nodes := make([]*Node[T], len(items))
	byKey := make(map[K]*Node[T], len(items))
	for i, item := range items {
		n := &Node[T]{Item: item, Children: []*Node[T]{}}
		nodes[i] = n
		if _, dup := byKey[key(item)]; !dup {
			byKey[key(item)] = n
		}
	}

	roots := make([]*Node[T], 0)
	parentOf := make(map[*Node[T]]*Node[T], len(items))
	for i, item := range items {
		n := nodes[i]
		pk, ok := parent(item)
		if !ok {
			roots = append(roots, n)
			continue
		}
		p, found := byKey[pk]
		if !found || p == n {
			roots = append(roots, n)
			continue
		}
		p.Children = append(p.Children, n)
		parentOf[n] = p
	}

	if reachable(roots) == len(items) {
		return roots
	}
	return breakCycles(nodes, roots, parentOf)
}

// breakCycles promotes members of parent cycles until every node hangs off a
// root. Only reachable with hand-made input: the backend accepts a parent
// only if it already exists.
func breakCycles[T any](nodes, roots []*Node[T], parentOf map[*Node[T]]*Node[T]) []*Node[T] {
	for {
		seen := make(map[*Node[T]]bool, len(nodes))
		var stack []*Node[T]
		stack = append(stack, roots...)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[n] {
				continue
			}
			seen[n] = true
			stack = append(stack, n.Children...)
		}
		var lost *Node[T]
		for _, n := range nodes {
			if !seen[n] {
				lost = n
				break
			}
		}
		if lost == nil {
			return roots
		}
		p := parentOf[lost]
		for i, c := range p.Children {
			if c == lost {
				p.Children = append(p.Children[:i:i], p.Children[i+1:]...)
				break
			}
		}
		delete(parentOf, lost)
		roots = append(roots, lost)
	}
}

func reachable[T any](roots []*Node[T]) int {
	total := 0
	Walk(roots, func(*Node[T], int) bool {
		total++
		return true
	})
	return total
}

// BuildCommentTree builds the reply forest of one post.
func BuildCommentTree(comments []models.Comment) []*CommentNode {
	return Build(comments, commentKey, commentParent)
}

func commentKey(c models.Comment) int { return c.ID }

func commentParent(c models.Comment) (int, bool) {
	if c.ParentCommentID == nil {
		return 0, false
	}
	return *c.ParentCommentID, true
}

// Walk visits the forest depth first, parents before children. Returning
// false from fn skips the node's subtree.
func Walk[T any](forest []*Node[T], fn func(n *Node[T], depth int) bool) {
	var visit func(ns []*Node[T], depth int)
	visit = func(ns []*Node[T], depth int) {
		for _, n := range ns {
			if fn(n, depth) {
				visit(n.Children, depth+1)
			}
		}
	}
	visit(forest, 0)
}

// Count returns the number of nodes in the forest.
func Count[T any](forest []*Node[T]) int {
	return reachable(forest)
}

// FindComment returns the node for comment id, or nil.
func FindComment(forest []*CommentNode, id int) *CommentNode {
	var found *CommentNode
	Walk(forest, func(n *CommentNode, _ int) bool {
		if found != nil {
			return false
		}
		if n.Item.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// MarshalJSON flattens the item's fields next to "children" when the item
// encodes as an object.
func (n *Node[T]) MarshalJSON() ([]byte, error) {
	item, err := json.Marshal(n.Item)
	if err != nil {
		return nil, err
	}
	children := n.Children
	if children == nil {
		children = []*Node[T]{}
	}
	kids, err := json.Marshal(children)
	if err != nil {
		return nil, err
	}

	item = bytes.TrimSpace(item)
	if len(item) < 2 || item[0] != '{' {
		return json.Marshal(struct {
			Item     json.RawMessage `json:"item"`
			Children json.RawMessage `json:"children"`
		}{item, kids})
	}

	var buf bytes.Buffer
	buf.Write(item[:len(item)-1])
	if len(bytes.TrimSpace(item[1:len(item)-1])) > 0 {
		buf.WriteByte(',')
	}
	buf.WriteString(`"children":`)
	buf.Write(kids)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
