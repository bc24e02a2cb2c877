package stdx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMust0(t *testing.T) {
	assert.NotPanics(t, func() { Must0(nil) })
	assert.Panics(t, func() { Must0(errors.New("boom")) })
}

func TestMust1(t *testing.T) {
	v := Must1(42, nil)
	require.Equal(t, 42, v)

	assert.Panics(t, func() { Must1(0, errors.New("boom")) })
}

func TestMust2(t *testing.T) {
	a, b := Must2("a", 1, nil)
	require.Equal(t, "a", a)
	require.Equal(t, 1, b)

	assert.Panics(t, func() { Must2("a", 1, errors.New("boom")) })
}

func TestZero(t *testing.T) {
	assert.Equal(t, 0, Zero[int]())
	assert.Equal(t, "", Zero[string]())
	assert.Nil(t, Zero[*int]())
}
