package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type menuPatch struct {
	Name      *string          `json:"name"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Active    *bool            `json:"active"`
	Internal  *string          `json:"-"`
	Skipped   *string          `json:"description"`
}

func TestNormalizeAndUpdatesFromPtrDTO(t *testing.T) {
	name := "  Soup of the day "
	price := decimal.RequireFromString("4.505")
	active := false
	hidden := "x"
	dto := &menuPatch{Name: &name, UnitPrice: &price, Active: &active, Internal: &hidden}

	NormalizePtrDTO(dto)
	assert.Equal(t, "Soup of the day", *dto.Name)
	assert.Equal(t, "4.51", dto.UnitPrice.StringFixed(2))

	got := UpdatesFromPtrDTO(dto, map[string]string{"name": "title"})
	assert.Equal(t, map[string]any{
		"title":      "Soup of the day",
		"unit_price": *dto.UnitPrice,
		"active":     false,
	}, got)
}

func TestNormalizeDTO(t *testing.T) {
	dto := &struct {
		Name  string
		Price decimal.Decimal
		Seats int
	}{Name: " T1 ", Price: decimal.RequireFromString("1.005"), Seats: 4}

	NormalizeDTO(dto)
	assert.Equal(t, "T1", dto.Name)
	assert.Equal(t, "1.01", dto.Price.StringFixed(2))
	assert.Equal(t, 4, dto.Seats)

	NormalizeDTO(nil)
	NormalizeDTO(*dto)
}

func TestPage(t *testing.T) {
	l, o := Page("", "", 50, 200)
	assert.Equal(t, 50, l)
	assert.Equal(t, 0, o)

	l, o = Page("1000", "20", 50, 200)
	assert.Equal(t, 200, l)
	assert.Equal(t, 20, o)

	l, _ = Page("-3", "x", 50, 200)
	assert.Equal(t, 50, l)
}
