package registry

import (
	"fmt"

	"github.com/Masterminds/vcs"

	"github.com/forgepm/forge/internal/core/id"
)

// DescribeVCSSource renders a human-readable description of a
// SourcePinned package origin, detecting the VCS type from its location the
// same way internal/gps/vcs_source.go picks a vcs.Repo implementation, and
// folding vcs.LocalError/vcs.RemoteError into a flat string rather than
// exposing the library's error types past this package boundary.
func DescribeVCSSource(pid id.PackageId) (string, error) {
	src := pid.Source()
	if src.Kind != id.SourcePinned {
		return "", fmt.Errorf("DescribeVCSSource: %s is not a pinned source", pid)
	}

	repoType, err := vcs.DetectVcsFromFS(src.Location)
	if err == nil {
		return fmt.Sprintf("%s repository at %s (%s)", repoType, src.Location, pid.VersionString()), nil
	}

	// Not a local checkout; fall back to describing it as a remote locator
	// without attempting to clone or fetch it (out of scope: §1).
	if rerr, ok := err.(*vcs.RemoteError); ok {
		return "", fmt.Errorf("cannot describe remote source %s: %s: %s", src.Location, rerr.Error(), rerr.Out())
	}
	if lerr, ok := err.(*vcs.LocalError); ok {
		return "", fmt.Errorf("cannot describe local source %s: %s: %s", src.Location, lerr.Error(), lerr.Out())
	}

	return fmt.Sprintf("pinned source at %s (%s)", src.Location, pid.VersionString()), nil
}
