// Package ota implements the update engine: manifest fetch, string-
// inequality version comparison, streaming install with progress and
// cancellation, and pending-image verify/rollback.
package ota

import "time"

// State is a node in the OTA engine's own lifecycle (separate from the
// bootloader's A/B slot state, which is out of this package's scope).
type State int

const (
	Idle State = iota
	Checking
	Downloading
	Installing
	Complete
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Checking:
		return "checking"
	case Downloading:
		return "downloading"
	case Installing:
		return "installing"
	case Complete:
		return "complete"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Asset is one downloadable file attached to a manifest release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Manifest is the GitHub-release-compatible JSON document served at the
// configured check_update URL.
type Manifest struct {
	TagName string  `json:"tag_name"`
	Body    string  `json:"body"`
	Assets  []Asset `json:"assets"`
}

// AvailableUpdate is the manifest reduced to what start_update needs:
// the matched firmware asset plus the version string it represents.
type AvailableUpdate struct {
	Version     string
	ReleaseNote string
	Asset       Asset
}

// Status is the read-only snapshot exposed to the HTTP surface.
type Status struct {
	State            State
	ProgressPercent  int
	CurrentVersion   string
	AvailableUpdate  *AvailableUpdate
	UpdateAvailable  bool
	LastCheckTime    time.Time
	ErrorMessage     string
}

// ProgressFunc reports bytes downloaded against the asset's total size.
type ProgressFunc func(downloaded, total int64)

// CompleteFunc reports the terminal outcome of a start_update call.
type CompleteFunc func(success bool)

// firmwareAssetMarker is the substring used to pick the firmware asset
// out of a manifest's asset list (spec §4.5 "Finds the asset whose name
// contains pin_firmware.bin").
const firmwareAssetMarker = "pin_firmware.bin"
