package container

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ name string }

func TestRegisterInstanceResolvesSameValue(t *testing.T) {
	c := New()
	RegisterInstance(c, &widget{name: "a"})

	got, err := Resolve[*widget](c)
	require.NoError(t, err)
	assert.Equal(t, "a", got.name)
}

func TestRegisterFactorySingletonCachesInstance(t *testing.T) {
	c := New()
	calls := 0
	RegisterFactory(c, func() (*widget, error) {
		calls++
		return &widget{name: "built"}, nil
	}, Singleton)

	first, err := Resolve[*widget](c)
	require.NoError(t, err)
	second, err := Resolve[*widget](c)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestRegisterFactoryTransientBuildsFresh(t *testing.T) {
	c := New()
	calls := 0
	RegisterFactory(c, func() (*widget, error) {
		calls++
		return &widget{name: "fresh"}, nil
	}, Transient)

	first, err := Resolve[*widget](c)
	require.NoError(t, err)
	second, err := Resolve[*widget](c)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, calls)
}

func TestResolveUnregisteredReturnsError(t *testing.T) {
	c := New()
	_, err := Resolve[*widget](c)
	assert.Error(t, err)
}

func TestFactoryErrorPropagates(t *testing.T) {
	c := New()
	wantErr := errors.New("boom")
	RegisterFactory(c, func() (*widget, error) {
		return nil, wantErr
	}, Transient)

	_, err := Resolve[*widget](c)
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
}

func TestUnregisterRemovesRegistration(t *testing.T) {
	c := New()
	RegisterInstance(c, &widget{name: "a"})
	assert.True(t, IsRegistered[*widget](c))

	Unregister[*widget](c)
	assert.False(t, IsRegistered[*widget](c))

	_, err := Resolve[*widget](c)
	assert.Error(t, err)
}

func TestIsRegisteredFalseForUnknownType(t *testing.T) {
	c := New()
	assert.False(t, IsRegistered[*widget](c))
}
