package hub

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// MinimumProtocolVersion is the lowest producer release whose frame layout
// this hub understands.
const MinimumProtocolVersion = "64.0.0"

var minimumProtocol = semver.MustParse(MinimumProtocolVersion)

// CheckProtocolVersion validates a producer-reported semver against the
// minimum supported release.
func CheckProtocolVersion(version string) error {
	if version == "" {
		return fmt.Errorf("missing version")
	}
	parsed, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", version, err)
	}
	if parsed.LessThan(minimumProtocol) {
		return fmt.Errorf("version %s is older than minimum supported %s", version, MinimumProtocolVersion)
	}
	return nil
}

// VersionRejection builds the envelope for a frame carrying an unsupported
// version. The details block tells the operator which side to upgrade.
func VersionRejection(received string, err error) Response {
	return Response{
		Status:  400,
		Message: "unsupported protocol version",
		Reason:  "unsupported_version",
		Error:   err.Error(),
		Details: map[string]any{
			"received": received,
			"minimum":  MinimumProtocolVersion,
			"info":     "upgrade the competition software or this hub so the versions overlap",
		},
	}
}
