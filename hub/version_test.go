package hub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckProtocolVersion(t *testing.T) {
	require.NoError(t, CheckProtocolVersion("64.0.0"))
	require.NoError(t, CheckProtocolVersion(MinimumProtocolVersion))

	err := CheckProtocolVersion("")
	require.EqualError(t, err, "missing version")

	err = CheckProtocolVersion("not-semver")
	require.ErrorContains(t, err, "invalid version")

	err = CheckProtocolVersion("51.9.9")
	require.ErrorContains(t, err, "older than minimum supported")
}

func TestVersionRejectionEnvelope(t *testing.T) {
	err := CheckProtocolVersion("4.2.0")
	resp := VersionRejection("4.2.0", err)
	require.Equal(t, 400, resp.Status)
	require.Equal(t, "unsupported_version", resp.Reason)
	require.Equal(t, "4.2.0", resp.Details["received"])
	require.Equal(t, MinimumProtocolVersion, resp.Details["minimum"])
	require.NotEmpty(t, resp.Details["info"])
}
