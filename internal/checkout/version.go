package checkout

import (
	"fmt"

	"github.com/ManuGH/bake/internal/kas"
)

// BuildVersion is set at link time:
// -ldflags "-X github.com/ManuGH/bake/internal/checkout.BuildVersion=v1.2.3"
var BuildVersion = "dev"

// VersionInfo is the bake version and the project format versions it reads.
type VersionInfo struct {
	Version   string
	MinFormat int
	MaxFormat int
}

// Version reports the running bake version.
func Version() VersionInfo {
	return VersionInfo{
		Version:   BuildVersion,
		MinFormat: kas.MinFormatVersion,
		MaxFormat: kas.MaxFormatVersion,
	}
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("bake %s (project format %d..%d)", v.Version, v.MinFormat, v.MaxFormat)
}
