package build_info

// Values overridden at build time:
// go build -ldflags "-X github.com/evmarchive/archiver/src/utils/build_info.Version=... -X github.com/evmarchive/archiver/src/utils/build_info.CommitHash=..."
var (
	// Semantic version of the build
	Version = "dev"

	// Git commit the binary was built from
	CommitHash = ""
)
