package all_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/macroscope/pkg/engine"
	_ "github.com/leapstack-labs/macroscope/pkg/engines/all"
)

func TestAllEnginesRegistered(t *testing.T) {
	assert.Equal(t, []string{"exec", "rust", "starlark"}, engine.List())

	for _, info := range engine.Describe() {
		assert.NotEmpty(t, info.Description, info.Name)
		assert.NotEmpty(t, info.Protocol, info.Name)
	}
}
