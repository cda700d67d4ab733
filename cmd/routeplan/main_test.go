package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadInput(t *testing.T) {
	in, err := readInput("testdata/colombo.json")
	require.NoError(t, err)
	require.Len(t, in.Visits, 3)
	require.Equal(t, 9*60, in.WorkStart)
	require.Equal(t, 17*60, in.WorkEnd)
	require.Equal(t, "Cinnamon Gardens", in.Visits[2].DisplayName)
}

func TestReadInputMissingFile(t *testing.T) {
	_, err := readInput("testdata/missing.json")
	require.Error(t, err)
}
