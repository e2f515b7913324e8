// Package contracts holds the types shared between the attendx service, its
// CLI and HTTP clients.
package contracts

import (
	"fmt"
	"runtime"
)

// Version of attendx. Release builds stamp Commit and BuildTime with
//
//	-ldflags "-X attendx/pkg/contracts.Commit=... -X attendx/pkg/contracts.BuildTime=..."
const Version = "0.3.0"

const (
	// APIVersion of the routes under /api
	APIVersion = "v1"
	// DataFormatVersion identifies the required upload columns
	DataFormatVersion = "attendance-v1"
)

var (
	Commit    = "dev"
	BuildTime = "unknown"
)

// VersionInfo is the body of GET /api/version
type VersionInfo struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
	DataFormat string `json:"data_format"`
	Commit     string `json:"commit"`
	BuildTime  string `json:"build_time"`
	Runtime    string `json:"runtime"`
}

func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:    Version,
		APIVersion: APIVersion,
		DataFormat: DataFormatVersion,
		Commit:     Commit,
		BuildTime:  BuildTime,
		Runtime:    fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

// String renders the info on one line, as printed by attendx-report -version.
func (v VersionInfo) String() string {
	return fmt.Sprintf("attendx %s (api %s, data %s, commit %s, built %s, %s)",
		v.Version, v.APIVersion, v.DataFormat, v.Commit, v.BuildTime, v.Runtime)
}
