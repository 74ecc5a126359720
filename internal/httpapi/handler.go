// Package httpapi serves the catalog over HTTP with chi.
package httpapi

import (
	"context"
	"net/http"

	"github.com/bookstore/catalog/internal/db"
	"github.com/bookstore/catalog/internal/events"
	"github.com/bookstore/catalog/internal/query"
	"github.com/bookstore/catalog/internal/repo"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Catalog is the read side served by the query engine
type Catalog interface {
	GetPage(ctx context.Context, req query.Request) (query.Page[query.ProductSummary], error)
	GetProduct(ctx context.Context, productID int64, userID *int64) (query.ProductSummary, error)
	DescendantNames(ctx context.Context, name string) ([]string, error)
}

// BookStore registers and updates book products
type BookStore interface {
	RegisterBook(ctx context.Context, in repo.BookProductInput) (*db.Product, error)
	UpdateBook(ctx context.Context, productID int64, in repo.BookProductInput) ([]string, error)
}

// CategoryStore administers the category tree
type CategoryStore interface {
	Create(ctx context.Context, name, parentName string) (*db.Category, error)
	List(ctx context.Context) ([]db.Category, error)
}

// TagStore administers tags
type TagStore interface {
	Create(ctx context.Context, name string) (*db.Tag, error)
	FindByName(ctx context.Context, name string) (*db.Tag, error)
	List(ctx context.Context, contains string) ([]db.Tag, error)
}

// EventPublisher announces catalog changes
type EventPublisher interface {
	PublishProductRegistered(ctx context.Context, payload events.ProductRegistered) error
	PublishProductUpdated(ctx context.Context, productID int64, fieldsChanged []string) error
}

// CacheInvalidator drops cached category subtrees after a category write
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Deps are the collaborators of a Handler. Publisher and Invalidator may be nil.
type Deps struct {
	Catalog     Catalog
	Books       BookStore
	Categories  CategoryStore
	Tags        TagStore
	Publisher   EventPublisher
	Invalidator CacheInvalidator
	Validator   *Validator
	Log         *zap.Logger

	// AnonymousUserID is the placeholder identity that may not use admin routes
	AnonymousUserID int64
}

// Handler implements the catalog HTTP endpoints
type Handler struct {
	catalog     Catalog
	books       BookStore
	categories  CategoryStore
	tags        TagStore
	publisher   EventPublisher
	invalidator CacheInvalidator
	validate    *Validator
	log         *zap.Logger
	anonymousID int64
}

func NewHandler(deps Deps) *Handler {
	h := &Handler{
		catalog:     deps.Catalog,
		books:       deps.Books,
		categories:  deps.Categories,
		tags:        deps.Tags,
		publisher:   deps.Publisher,
		invalidator: deps.Invalidator,
		validate:    deps.Validator,
		log:         deps.Log,
		anonymousID: deps.AnonymousUserID,
	}
	if h.publisher == nil {
		h.publisher = events.NopPublisher{}
	}
	if h.validate == nil {
		h.validate = NewValidator()
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// ListBooks serves one page of the filtered catalog
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r.URL.Query())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.UserID, err = userID(r); err != nil {
		h.writeError(w, r, err)
		return
	}

	page, err := h.catalog.GetPage(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetBook serves a single book product and counts the view
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := userID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.catalog.GetProduct(r.Context(), productID, user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// CategoryDescendants lists a category and every category below it
func (h *Handler) CategoryDescendants(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	names, err := h.catalog.DescendantNames(r.Context(), name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, descendantsResponse{Category: name, Descendants: names})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]categoryResponse, len(categories))
	for i, c := range categories {
		out[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List(r.Context(), r.URL.Query().Get("contains"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]tagResponse, len(tags))
	for i, t := range tags {
		out[i] = toTagResponse(t)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTag is a direct lookup; an unknown name is a 404
func (h *Handler) GetTag(w http.ResponseWriter, r *http.Request) {
	tag, err := h.tags.FindByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTagResponse(*tag))
}
