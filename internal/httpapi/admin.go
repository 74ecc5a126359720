package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bookstore/catalog/internal/events"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	publishTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// requireUser rejects admin calls without a real user identity
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := userID(r)
		if err != nil || id == nil || *id == h.anonymousID {
			h.writeError(w, r, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("malformed request body: " + err.Error())
	}
	return h.validate.Validate(dst)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	category, err := h.categories.Create(r.Context(), req.Name, req.Parent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(r.Context()); err != nil {
			h.log.Warn("Failed to invalidate hierarchy cache", zap.String("category", req.Name), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(*category))
}

func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	tag, err := h.tags.Create(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTagResponse(*tag))
}

// RegisterBook creates a book product and announces it
func (h *Handler) RegisterBook(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	in := req.toInput()
	product, err := h.books.RegisterBook(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	payload := events.ProductRegistered{
		ProductID:     product.ID,
		Title:         in.Title,
		Author:        in.Author,
		ISBN13:        in.ISBN13,
		PriceStandard: in.PriceStandard,
		PriceSale:     in.PriceSale,
		Inventory:     in.Inventory,
		State:         in.State.String(),
		Categories:    in.CategoryNames,
		Tags:          in.TagNames,
	}
	h.publishAsync(r, "registered", product.ID, func(ctx context.Context) error {
		return h.publisher.PublishProductRegistered(ctx, payload)
	})

	resp := registeredResponse{ProductID: product.ID}
	if product.Book != nil {
		resp.BookID = product.Book.ID
	}
	writeJSON(w, http.StatusCreated, resp)
}

// UpdateBook overwrites a book product and announces the changed fields
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	productID, err := productIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req BookRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	changed, err := h.books.UpdateBook(r.Context(), productID, req.toInput())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if len(changed) > 0 {
		h.publishAsync(r, "updated", productID, func(ctx context.Context) error {
			return h.publisher.PublishProductUpdated(ctx, productID, changed)
		})
	}
	if changed == nil {
		changed = []string{}
	}
	writeJSON(w, http.StatusOK, updatedResponse{ProductID: productID, FieldsChanged: changed})
}

// publishAsync does not fail the request if event publishing fails
func (h *Handler) publishAsync(r *http.Request, what string, productID int64, publish func(context.Context) error) {
	requestID := chimw.GetReqID(r.Context())
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if requestID != "" {
			ctx = events.WithCorrelationID(ctx, requestID)
		}
		if err := publish(ctx); err != nil {
			h.log.Error("Failed to publish product event",
				zap.String("event", what),
				zap.Int64("product_id", productID),
				zap.Error(err),
			)
		}
	}()
}
