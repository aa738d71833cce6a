package version

import (
	"fmt"
	"runtime"
)

// Build metadata, overridden at build time via -ldflags:
//
//	-X github.com/lecternaudio/lectern/version.GitRelease=v0.3.0
//	-X github.com/lecternaudio/lectern/version.GitCommit=abc1234
//	-X github.com/lecternaudio/lectern/version.GitCommitDate=2026-08-01
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
)
