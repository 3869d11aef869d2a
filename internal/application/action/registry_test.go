package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	kind Kind
}

func (s stubHandler) Kind() Kind { return s.kind }

func (s stubHandler) Describe() Descriptor {
	return Descriptor{Kind: s.kind, Label: string(s.kind)}
}

func (s stubHandler) Execute(context.Context, Input) (*Result, error) {
	return &Result{Kind: s.kind, Success: true}, nil
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(stubHandler{KindCreateProject}, stubHandler{KindSendEmail})
	require.NoError(t, err)

	h, ok := r.Lookup("send_email")
	require.True(t, ok)
	assert.Equal(t, KindSendEmail, h.Kind())

	_, ok = r.Lookup("send_fax")
	assert.False(t, ok)

	catalog := r.Catalog()
	require.Len(t, catalog, 2)
	assert.Equal(t, KindSendEmail, catalog[0].Kind, "catalog follows kind order")
	assert.Equal(t, KindCreateProject, catalog[1].Kind)
}

func TestRegistry_Rejects(t *testing.T) {
	_, err := NewRegistry(stubHandler{KindSendEmail}, stubHandler{KindSendEmail})
	assert.ErrorContains(t, err, "registered twice")

	_, err = NewRegistry(stubHandler{Kind("send_fax")})
	assert.ErrorContains(t, err, "unknown action kind")
}

func TestKind_IsValid(t *testing.T) {
	for _, k := range AllKinds() {
		assert.True(t, k.IsValid(), k)
	}
	assert.Len(t, AllKinds(), 7)
	assert.False(t, Kind("").IsValid())
}
