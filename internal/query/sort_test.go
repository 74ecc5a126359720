package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortResolve(t *testing.T) {
	tests := []struct {
		name   string
		orders []SortOrder
		want   Order
	}{
		{"default when empty", nil, Order{Field: "registerDate", Column: "products.registered_at", Desc: true}},
		{"default when field blank", []SortOrder{{}}, Order{Field: "registerDate", Column: "products.registered_at", Desc: true}},
		{"ascending by default", []SortOrder{{Field: "title"}}, Order{Field: "title", Column: "books.title"}},
		{"descending any case", []SortOrder{{Field: "price", Direction: "DESC"}}, Order{Field: "price", Column: "products.price_standard", Desc: true}},
		{"first order wins", []SortOrder{{Field: "author", Direction: "asc"}, {Field: "bogusField"}}, Order{Field: "author", Column: "books.author"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SortSpecResolver{}.Resolve(tt.orders)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSortResolveInvalid(t *testing.T) {
	_, err := SortSpecResolver{}.Resolve([]SortOrder{{Field: "bogusField"}})
	assert.ErrorIs(t, err, ErrInvalidSort)

	var invalid *InvalidSortError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "bogusField", invalid.Field)

	// Column names are not accepted in place of field names
	_, err = SortSpecResolver{}.Resolve([]SortOrder{{Field: "products.id"}})
	assert.ErrorIs(t, err, ErrInvalidSort)

	_, err = SortSpecResolver{}.Resolve([]SortOrder{{Field: "title", Direction: "sideways"}})
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "sideways", invalid.Direction)
}

func TestParseSortOrder(t *testing.T) {
	assert.Equal(t, SortOrder{Field: "title", Direction: "desc"}, ParseSortOrder("title,desc"))
	assert.Equal(t, SortOrder{Field: "title"}, ParseSortOrder("title"))
	assert.Equal(t, SortOrder{Field: "price", Direction: "asc"}, ParseSortOrder(" price , asc "))
}

func TestSortFields(t *testing.T) {
	want := []string{
		"author", "inventory", "price", "productId", "pubDate",
		"publisher", "registerDate", "salePrice", "title", "viewCount",
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, want, SortFields())
	}
}

func TestInvalidSortErrorListsFields(t *testing.T) {
	_, err := SortSpecResolver{}.Resolve([]SortOrder{{Field: "bogusField"}})
	require.Error(t, err)
	assert.Equal(t,
		`invalid sort field "bogusField", expected one of: author, inventory, price, productId, pubDate, publisher, registerDate, salePrice, title, viewCount`,
		err.Error())
}
