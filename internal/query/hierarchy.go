package query

import (
	"context"

	"github.com/bookstore/catalog/internal/db"
)

// DefaultMaxDepth bounds category traversal when no explicit depth is configured
const DefaultMaxDepth = 64

// CategoryLookup is the read side of the category tree
type CategoryLookup interface {
	FindByName(ctx context.Context, name string) (*db.Category, error)
	FindChildren(ctx context.Context, parent *db.Category) ([]db.Category, error)
}

// DescendantResolver expands a category name to the names of its subtree
type DescendantResolver interface {
	ResolveDescendantNames(ctx context.Context, rootName string) ([]string, error)
}

// CategoryHierarchyResolver walks the parent→child relation depth-first
type CategoryHierarchyResolver struct {
	lookup   CategoryLookup
	maxDepth int
}

// NewCategoryHierarchyResolver creates a resolver. maxDepth <= 0 selects DefaultMaxDepth.
func NewCategoryHierarchyResolver(lookup CategoryLookup, maxDepth int) *CategoryHierarchyResolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &CategoryHierarchyResolver{lookup: lookup, maxDepth: maxDepth}
}

type traversal struct {
	root    string
	visited map[int64]struct{}
	onPath  map[int64]struct{}
	out     []db.Category
}

// ResolveDescendants returns the named category followed by every category
// below it, in depth-first order, each exactly once. An unknown name fails
// with the lookup's not-found error; a loop in the tree fails with ErrCategoryCycle.
func (r *CategoryHierarchyResolver) ResolveDescendants(ctx context.Context, rootName string) ([]db.Category, error) {
	root, err := r.lookup.FindByName(ctx, rootName)
	if err != nil {
		return nil, err
	}

	t := &traversal{
		root:    rootName,
		visited: make(map[int64]struct{}),
		onPath:  make(map[int64]struct{}),
	}
	if err := r.visit(ctx, t, *root, 0); err != nil {
		return nil, err
	}
	return t.out, nil
}

// ResolveDescendantNames projects ResolveDescendants onto category names
func (r *CategoryHierarchyResolver) ResolveDescendantNames(ctx context.Context, rootName string) ([]string, error) {
	categories, err := r.ResolveDescendants(ctx, rootName)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names, nil
}

func (r *CategoryHierarchyResolver) visit(ctx context.Context, t *traversal, node db.Category, depth int) error {
	if depth > r.maxDepth {
		return &CycleError{Root: t.root, Category: node.Name, Depth: depth}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.visited[node.ID] = struct{}{}
	t.onPath[node.ID] = struct{}{}
	defer delete(t.onPath, node.ID)
	t.out = append(t.out, node)

	children, err := r.lookup.FindChildren(ctx, &node)
	if err != nil {
		return err
	}
	for _, child := range children {
		if _, ok := t.onPath[child.ID]; ok {
			return &CycleError{Root: t.root, Category: child.Name, Depth: depth + 1}
		}
		if _, ok := t.visited[child.ID]; ok {
			continue
		}
		if err := r.visit(ctx, t, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
