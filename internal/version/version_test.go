package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringContainsBuildMetadata(t *testing.T) {
	s := String()
	require.Contains(t, s, "consentcam")
	require.Contains(t, s, Version)
	require.Contains(t, s, "go=go")
}
