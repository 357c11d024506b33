package engineerrs_test

import (
	"testing"

	"github.com/ashgrove/nativedbg/engineerrs"
	"github.com/stretchr/testify/require"
)

func TestIsAndHas(t *testing.T) {
	inner := engineerrs.New(engineerrs.NotFound, engineerrs.PatFunctionNotFound, "main")
	outer := engineerrs.New(engineerrs.Process, "launch: %v", inner)

	require.True(t, engineerrs.Is(inner, engineerrs.PatFunctionNotFound))
	require.False(t, engineerrs.Is(outer, engineerrs.PatFunctionNotFound))
	require.True(t, engineerrs.Has(outer, engineerrs.PatFunctionNotFound))
}

func TestMessages(t *testing.T) {
	err := engineerrs.New(engineerrs.Format, engineerrs.PatInvalidMagic, 0xdeadbeef)
	require.Contains(t, err.Error(), "0xdeadbeef")
}
