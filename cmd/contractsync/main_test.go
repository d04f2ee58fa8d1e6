package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContractArg(t *testing.T) {
	name, code, err := parseContractArg("escrow:5279")
	require.NoError(t, err)
	assert.Equal(t, "escrow", name)
	assert.Equal(t, []byte{0x52, 0x79}, code)

	for _, bad := range []string{"escrow", ":5279", "escrow:", "escrow:zz"} {
		_, _, err := parseContractArg(bad)
		assert.Error(t, err, bad)
	}
}
