package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bookstore/catalog/internal/db"
	"github.com/bookstore/catalog/internal/query"
	"github.com/go-chi/chi/v5"
)

const userIDHeader = "X-User-Id"

// userID reads the caller identity. A missing header is anonymous.
func userID(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.Header.Get(userIDHeader))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, badRequest("invalid " + userIDHeader + " header")
	}
	return &id, nil
}

func productIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid product id")
	}
	return id, nil
}

// pageRequest decodes the catalog listing query string
func pageRequest(v url.Values) (query.Request, error) {
	req := query.Request{Combinator: query.And}

	var err error
	if req.Page, err = intParam(v, "page", 0); err != nil {
		return req, err
	}
	if req.Size, err = intParam(v, "size", 0); err != nil {
		return req, err
	}
	if req.Page < 0 {
		return req, badRequest("page must not be negative")
	}
	if req.Size < 0 {
		return req, badRequest("size must not be negative")
	}

	for _, s := range v["sort"] {
		req.Sort = append(req.Sort, query.ParseSortOrder(s))
	}

	req.Title = strings.TrimSpace(v.Get("title"))
	req.CategoryNames = listParam(v, "categoryName")
	req.TagNames = listParam(v, "tagName")

	isAnd, err := boolParam(v, "isAnd", true)
	if err != nil {
		return req, err
	}
	if !isAnd {
		req.Combinator = query.Or
	}

	if raw := v.Get("state"); raw != "" {
		state, err := db.ParseProductState(raw)
		if err != nil {
			return req, badRequest(err.Error())
		}
		req.State = &state
	}

	if req.LikedOnly, err = boolParam(v, "liked", false); err != nil {
		return req, err
	}
	return req, nil
}

func intParam(v url.Values, name string, def int) (int, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(name + " must be an integer")
	}
	return n, nil
}

func boolParam(v url.Values, name string, def bool) (bool, error) {
	raw := strings.TrimSpace(v.Get(name))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest(name + " must be true or false")
	}
	return b, nil
}

// listParam accepts both repeated parameters and comma-separated values
func listParam(v url.Values, name string) []string {
	var out []string
	for _, raw := range v[name] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
