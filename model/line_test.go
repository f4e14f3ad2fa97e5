package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voyagekit/transit/model"
)

func TestNewLineDerivesID(t *testing.T) {
	l := model.NewLine("", "vbb", model.ProductSubway, "U8", "U8: Wittenau - Hermannstr.")
	assert.Equal(t, "vbb|U|U8|U8: Wittenau - Hermannstr.", l.ID)

	// A supplied id wins.
	l = model.NewLine("line-17", "vbb", model.ProductSubway, "U8", "")
	assert.Equal(t, "line-17", l.ID)

	// Same identity fields, same id.
	a := model.NewLine("", "vbb", model.ProductBus, "M41", "")
	b := model.NewLine("", "vbb", model.ProductBus, "M41", "")
	assert.True(t, a.Equal(b))

	c := model.NewLine("", "vbb", model.ProductTram, "M41", "")
	assert.False(t, a.Equal(c))
}

func TestProductCodes(t *testing.T) {
	for p := model.ProductHighSpeedTrain; p <= model.ProductOnDemand; p++ {
		got, ok := model.ProductFromCode(p.Code())
		assert.True(t, ok)
		assert.Equal(t, p, got)
	}

	_, ok := model.ProductFromCode('X')
	assert.False(t, ok)
}

func TestProductSet(t *testing.T) {
	s := model.NewProductSet(model.ProductSubway, model.ProductBus)
	assert.True(t, s.Contains(model.ProductSubway))
	assert.True(t, s.Contains(model.ProductBus))
	assert.False(t, s.Contains(model.ProductTram))
	assert.Equal(t, []model.Product{model.ProductSubway, model.ProductBus}, s.Products())

	// The zero set means "unknown", not "nothing".
	assert.Equal(t, model.ProductSet(0), model.NewProductSet())

	for p := model.ProductHighSpeedTrain; p <= model.ProductOnDemand; p++ {
		assert.True(t, model.AllProducts.Contains(p))
	}
}
