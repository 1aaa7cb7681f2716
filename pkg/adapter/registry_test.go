package adapter

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct{ Adapter }

func TestRegisterAndLookup(t *testing.T) {
	Register(Driver{
		Name:          "Stub_Store",
		New:           func(*slog.Logger) Adapter { return stubAdapter{} },
		DefaultSchema: "stub",
	})

	d, ok := Lookup("stub_store")
	require.True(t, ok, "lookup ignores case")
	assert.Equal(t, "stub", d.DefaultSchema)
	assert.Contains(t, Names(), "stub_store")

	got, err := Open(Config{Type: "STUB_STORE"}, nil)
	require.NoError(t, err)
	assert.IsType(t, stubAdapter{}, got)
}

func TestRegister_RequiresFactory(t *testing.T) {
	assert.Panics(t, func() { Register(Driver{Name: "broken"}) })
	assert.Panics(t, func() { Register(Driver{New: func(*slog.Logger) Adapter { return nil }}) })
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Config{}, nil)
	require.EqualError(t, err, "adapter type not specified")

	_, err = Open(Config{Type: "oracle"}, nil)
	var unknown *UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)
	assert.Contains(t, err.Error(), "strata.yaml")
}
