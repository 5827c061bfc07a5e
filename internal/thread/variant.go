package thread

import (
	"fmt"
	"strings"
	"time"
)

// Variant configures how a thread is presented and synchronized at one call
// site. Build variants with NewVariant.
type Variant struct {
	Name        string
	IndentWidth int
	// MaxIndentDepth caps visual indentation; nesting itself is unbounded.
	MaxIndentDepth int
	ShowAvatars    bool
	Markdown       bool
	Policy         Policy
	LockScroll     bool
}

// Indent returns the indentation for depth, capped at MaxIndentDepth when
// that is positive.
func (v Variant) Indent(depth int) int {
	if v.MaxIndentDepth > 0 && depth > v.MaxIndentDepth {
		depth = v.MaxIndentDepth
	}
	return depth * v.IndentWidth
}

type VariantBuilder struct {
	v Variant
}

func NewVariant(name string) *VariantBuilder {
	return &VariantBuilder{v: Variant{Name: name, IndentWidth: 2, Markdown: true}}
}

func (b *VariantBuilder) Indent(width int) *VariantBuilder {
	if width >= 0 {
		b.v.IndentWidth = width
	}
	return b
}

func (b *VariantBuilder) MaxIndentDepth(depth int) *VariantBuilder {
	b.v.MaxIndentDepth = depth
	return b
}

func (b *VariantBuilder) Avatars(on bool) *VariantBuilder {
	b.v.ShowAvatars = on
	return b
}

func (b *VariantBuilder) Markdown(on bool) *VariantBuilder {
	b.v.Markdown = on
	return b
}

// Poll sets the polling interval; zero disables polling.
func (b *VariantBuilder) Poll(every time.Duration) *VariantBuilder {
	if every < 0 {
		every = 0
	}
	b.v.Policy.PollInterval = every
	return b
}

// LockScroll makes a mounted view hold the scroll lock while open.
func (b *VariantBuilder) LockScroll(on bool) *VariantBuilder {
	b.v.LockScroll = on
	return b
}

func (b *VariantBuilder) Build() Variant {
	return b.v
}

// DefaultPollInterval is the refresh period of the inline thread.
const DefaultPollInterval = 5 * time.Second

var (
	// InlineVariant is the thread embedded under a post. It polls.
	InlineVariant = NewVariant("inline").
			Indent(4).
			MaxIndentDepth(8).
			Avatars(true).
			Poll(DefaultPollInterval).
			Build()

	// DrawerVariant is the overlay thread. It refetches only after local
	// mutations and holds the scroll lock while open.
	DrawerVariant = NewVariant("drawer").
			Indent(2).
			MaxIndentDepth(6).
			LockScroll(true).
			Build()
)

// VariantByName resolves a stock variant.
func VariantByName(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", InlineVariant.Name:
		return InlineVariant, nil
	case DrawerVariant.Name:
		return DrawerVariant, nil
	default:
		return Variant{}, fmt.Errorf("unknown thread variant %q", name)
	}
}
