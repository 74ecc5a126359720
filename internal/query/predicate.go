package query

import (
	"fmt"
	"strings"

	"github.com/bookstore/catalog/internal/db"
	"gorm.io/gorm"
)

// CategoryGroup is one requested category together with its resolved subtree
type CategoryGroup struct {
	Requested string
	Names     []string
}

// Filter is the caller's filter set after category expansion
type Filter struct {
	Categories []CategoryGroup
	Tags       []string
	Combinator Combinator
	State      *db.ProductState
	Title      string
	LikedBy    *int64
}

// RequirementKind tells which join table a requirement matches through
type RequirementKind int

const (
	CategoryRequirement RequirementKind = iota
	TagRequirement
)

// Requirement is one element of the filter set: a requested tag, or a
// requested category satisfied by any name of its subtree.
type Requirement struct {
	Kind  RequirementKind
	Key   string
	Names []string
}

// Conditions is immutable filter data applied to a books⋈products query
type Conditions struct {
	State        *db.ProductState
	TitlePattern string
	LikedBy      *int64
	Requirements []Requirement
	Combinator   Combinator
}

// Predicate pairs the row and count conditions of one request. Both are
// produced from the same Filter and must stay equal.
type Predicate struct {
	Row              Conditions
	Count            Conditions
	GroupingRequired bool
	RequiredJoins    int
}

// PredicateBuilder turns a Filter into a Predicate
type PredicateBuilder struct{}

// Build does not check that tag or category names exist; a name that
// matches nothing simply contributes no rows.
func (PredicateBuilder) Build(f Filter) Predicate {
	var reqs []Requirement
	seenCategory := make(map[string]struct{})
	var hasCategories, hasTags bool

	for _, g := range f.Categories {
		if _, dup := seenCategory[g.Requested]; dup || g.Requested == "" {
			continue
		}
		seenCategory[g.Requested] = struct{}{}
		names := g.Names
		if len(names) == 0 {
			names = []string{g.Requested}
		}
		reqs = append(reqs, Requirement{Kind: CategoryRequirement, Key: g.Requested, Names: cloneStrings(names)})
		hasCategories = true
	}

	seenTag := make(map[string]struct{})
	for _, name := range f.Tags {
		if _, dup := seenTag[name]; dup || name == "" {
			continue
		}
		seenTag[name] = struct{}{}
		reqs = append(reqs, Requirement{Kind: TagRequirement, Key: name, Names: []string{name}})
		hasTags = true
	}

	pattern := ""
	if title := strings.TrimSpace(f.Title); title != "" {
		pattern = "%" + escapeLike(strings.ToLower(title)) + "%"
	}

	build := func() Conditions {
		c := Conditions{
			TitlePattern: pattern,
			Combinator:   f.Combinator,
		}
		if f.State != nil {
			state := *f.State
			c.State = &state
		}
		if f.LikedBy != nil {
			user := *f.LikedBy
			c.LikedBy = &user
		}
		if len(reqs) > 0 {
			c.Requirements = make([]Requirement, len(reqs))
			for i, r := range reqs {
				c.Requirements[i] = Requirement{Kind: r.Kind, Key: r.Key, Names: cloneStrings(r.Names)}
			}
		}
		return c
	}

	p := Predicate{
		Row:              build(),
		Count:            build(),
		GroupingRequired: f.Combinator == And && len(reqs) > 0,
	}
	if hasCategories {
		p.RequiredJoins += 2
	}
	if hasTags {
		p.RequiredJoins += 2
	}
	return p
}

// Apply adds the conditions to a query whose FROM clause joins books and products
func (c Conditions) Apply(tx *gorm.DB) *gorm.DB {
	if c.State != nil {
		tx = tx.Where("products.state = ?", *c.State)
	}
	if c.TitlePattern != "" {
		tx = tx.Where(`LOWER(books.title) LIKE ? ESCAPE '\'`, c.TitlePattern)
	}
	if c.LikedBy != nil {
		liked := newQuery(tx).Table("product_likes").
			Select("product_likes.product_id").
			Where("product_likes.user_id = ?", *c.LikedBy)
		tx = tx.Where("products.id IN (?)", liked)
	}
	if len(c.Requirements) > 0 {
		tx = tx.Where("products.id IN (?)", c.matchingProducts(tx))
	}
	return tx
}

// matchingProducts selects the ids of products that satisfy the requirements.
// Every requirement contributes (product_id, requirement) rows through its join
// table; AND keeps products that matched every requirement, OR keeps any match.
func (c Conditions) matchingProducts(tx *gorm.DB) *gorm.DB {
	parts := make([]interface{}, len(c.Requirements))
	for i, req := range c.Requirements {
		parts[i] = req.matchRows(newQuery(tx), i)
	}
	union := newQuery(tx).Raw(strings.Repeat("? UNION ALL ", len(parts)-1)+"?", parts...)

	matched := newQuery(tx).Table("(?) AS matched", union).Select("matched.product_id")
	if c.Combinator == And {
		return matched.
			Group("matched.product_id").
			Having("COUNT(DISTINCT matched.requirement) = ?", len(c.Requirements))
	}
	return matched
}

func (r Requirement) matchRows(tx *gorm.DB, ordinal int) *gorm.DB {
	if r.Kind == CategoryRequirement {
		return tx.Table("product_categories").
			Select(fmt.Sprintf("product_categories.product_id AS product_id, %d AS requirement", ordinal)).
			Joins("JOIN categories ON categories.id = product_categories.category_id").
			Where("categories.name IN ?", r.Names)
	}
	return tx.Table("product_tags").
		Select(fmt.Sprintf("product_tags.product_id AS product_id, %d AS requirement", ordinal)).
		Joins("JOIN tags ON tags.id = product_tags.tag_id").
		Where("tags.name IN ?", r.Names)
}

func newQuery(tx *gorm.DB) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true})
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
