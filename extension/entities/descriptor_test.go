package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-dev/tabletop-host-sdk/capability"
)

func validManifest() *Manifest {
	return &Manifest{
		ID:           "weather",
		DisplayName:  "Weather Effects",
		Version:      "1.2.0",
		Author:       "tabletop",
		APIVersion:   "^1.0",
		Permissions:  []string{"state.modify", "events.dispatch"},
		Dependencies: []string{"core"},
		LoadOrder:    3,
	}
}

func TestNewDescriptor(t *testing.T) {
	t.Run("ValidManifest", func(t *testing.T) {
		d, err := NewDescriptor(validManifest())
		require.NoError(t, err)

		assert.Equal(t, "weather", d.ID().String())
		assert.Equal(t, "Weather Effects", d.DisplayName())
		assert.Equal(t, "1.2.0", d.Version().String())
		assert.Equal(t, "tabletop", d.Author())
		assert.Equal(t, "^1.0", d.APIVersion())
		assert.Equal(t, 3, d.LoadOrder())
		assert.Equal(t, StateRegistered, d.State())
		assert.True(t, d.Permissions().Has(capability.CapabilityModifyState))
		require.Len(t, d.Dependencies(), 1)
		assert.Equal(t, "core", d.Dependencies()[0].String())
	})

	t.Run("MissingFields", func(t *testing.T) {
		mutations := map[string]func(*Manifest){
			"manifest":    nil,
			"id":          func(m *Manifest) { m.ID = "" },
			"displayName": func(m *Manifest) { m.DisplayName = "" },
			"version":     func(m *Manifest) { m.Version = "" },
			"author":      func(m *Manifest) { m.Author = "" },
			"apiVersion":  func(m *Manifest) { m.APIVersion = "" },
		}
		for field, mutate := range mutations {
			t.Run(field, func(t *testing.T) {
				var err error
				if mutate == nil {
					_, err = NewDescriptor(nil)
				} else {
					m := validManifest()
					mutate(m)
					_, err = NewDescriptor(m)
				}
				var missing *MissingFieldError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, field, missing.Field)
			})
		}
	})

	t.Run("LooseVersionRejected", func(t *testing.T) {
		m := validManifest()
		m.Version = "1.2"

		_, err := NewDescriptor(m)
		var invalid *InvalidVersionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "weather", invalid.ID)
	})

	t.Run("UnknownPermissionRejected", func(t *testing.T) {
		m := validManifest()
		m.Permissions = []string{"network.raw"}
		_, err := NewDescriptor(m)
		assert.Error(t, err)
	})

	t.Run("InvalidDependencyIDRejected", func(t *testing.T) {
		m := validManifest()
		m.Dependencies = []string{"../core"}
		_, err := NewDescriptor(m)
		assert.Error(t, err)
	})
}

func TestDescriptor_MarkRegistered(t *testing.T) {
	d, err := NewDescriptor(validManifest())
	require.NoError(t, err)
	require.Zero(t, d.Seq())

	at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	d.MarkRegistered(7, at)

	assert.Equal(t, uint64(7), d.Seq())
	assert.Equal(t, at, d.RegisteredAt())
}

func TestDescriptor_TransitionTo(t *testing.T) {
	d, err := NewDescriptor(validManifest())
	require.NoError(t, err)

	require.NoError(t, d.TransitionTo(StateActive))
	require.NoError(t, d.TransitionTo(StateQuarantined))

	err = d.TransitionTo(StateActive)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StateQuarantined, invalid.From)
	assert.Equal(t, StateActive, invalid.To)

	// The failed transition leaves the state untouched.
	assert.Equal(t, StateQuarantined, d.State())
}
