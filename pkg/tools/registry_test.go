package tools

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetutor/casetutor/pkg/core"
	"github.com/casetutor/casetutor/pkg/errors"
)

// stubTool is a minimal tool for registry and engine tests.
type stubTool struct {
	name    string
	execute func(ctx context.Context, args map[string]any) (string, error)
}

func (s *stubTool) Name() string { return s.name }

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if s.execute == nil {
		return "ok", nil
	}
	return s.execute(ctx, args)
}

func stubConstructor(fn func(ctx context.Context, args map[string]any) (string, error)) core.ToolConstructor {
	return func(desc core.ToolDescriptor, _ *core.Config) (core.Tool, error) {
		return &stubTool{name: desc.Name, execute: fn}, nil
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(core.NewConfig())
	require.NoError(t, r.RegisterConstructor("stub", stubConstructor(nil)))
	return r
}

func TestRegisterDescriptorValidation(t *testing.T) {
	r := newTestRegistry(t)

	err := r.RegisterDescriptor(core.ToolDescriptor{})
	require.Error(t, err)
	assert.Equal(t, errors.Config, errors.CodeOf(err))

	schemaA := map[string]any{"type": "object", "properties": map[string]any{"a": map[string]any{"type": "string"}}}
	schemaB := map[string]any{"type": "object", "properties": map[string]any{"b": map[string]any{"type": "string"}}}

	require.NoError(t, r.RegisterDescriptor(core.ToolDescriptor{Name: "t", Type: "stub", ParameterSchema: schemaA}))

	// Same name, identical schema: tolerated.
	require.NoError(t, r.RegisterDescriptor(core.ToolDescriptor{Name: "t", Type: "stub", ParameterSchema: schemaA}))

	// Same name, conflicting schema: Config error.
	err = r.RegisterDescriptor(core.ToolDescriptor{Name: "t", Type: "stub", ParameterSchema: schemaB})
	require.Error(t, err)
	assert.Equal(t, errors.Config, errors.CodeOf(err))
}

func TestRegisterConstructorDuplicate(t *testing.T) {
	r := newTestRegistry(t)
	err := r.RegisterConstructor("stub", stubConstructor(nil))
	require.Error(t, err)
	assert.Equal(t, errors.Config, errors.CodeOf(err))
}

func TestNamesInsertionOrdered(t *testing.T) {
	r := newTestRegistry(t)
	for _, name := range []string{"zeta", "alpha", "mike"} {
		require.NoError(t, r.RegisterDescriptor(core.ToolDescriptor{Name: name, Type: "stub"}))
	}
	assert.Equal(t, []string{"zeta", "alpha", "mike"}, r.Names())
}

func TestInstanceLazySingleton(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterDescriptor(core.ToolDescriptor{Name: "t", Type: "stub"}))

	first, ok := r.Instance("t")
	require.True(t, ok)
	second, ok := r.Instance("t")
	require.True(t, ok)
	assert.Same(t, first, second)

	r.ClearInstances()
	third, ok := r.Instance("t")
	require.True(t, ok)
	assert.NotSame(t, first, third)
}

func TestInstanceMissingReturnsFalse(t *testing.T) {
	r := newTestRegistry(t)

	_, ok := r.Instance("nope")
	assert.False(t, ok)

	// Descriptor present but its type has no constructor.
	require.NoError(t, r.RegisterDescriptor(core.ToolDescriptor{Name: "orphan", Type: "unregistered"}))
	_, ok = r.Instance("orphan")
	assert.False(t, ok)
}

func TestInstanceConcurrentFirstAccess(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.RegisterDescriptor(core.ToolDescriptor{Name: "t", Type: "stub"}))

	const goroutines = 16
	instances := make([]core.Tool, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inst, ok := r.Instance("t")
			require.True(t, ok)
			instances[i] = inst
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, instances[0], instances[i])
	}
}
