package blake3

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigesterMatchesCompute(t *testing.T) {
	const content = "pork pie hat"

	want, err := Compute(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, want, 64)

	d := NewDigester()
	_, err = io.Copy(io.Discard, io.TeeReader(strings.NewReader(content), d))
	require.NoError(t, err)
	require.Equal(t, want, d.Hex())
}
