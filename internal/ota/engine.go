package ota

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pin/internal/kv"
	appLog "pin/internal/log"
	"pin/internal/perr"
)

const (
	namespace          = "ota_config"
	currentVersionKey  = "current_version"
	pendingVerifyKey   = "pending_verify"
	stagingPath        = "staging_image"
)

// Engine implements check/install/rollback against a GitHub-release-
// compatible manifest, with no assumption about the underlying
// bootloader's A/B slot mechanics beyond the pending-verify flag it
// reads at Init and writes at the end of a successful install (spec §1
// "bootloader partition details" are an external collaborator).
type Engine struct {
	store  kv.Store
	client *http.Client

	mu              sync.Mutex
	state           State
	currentVersion  string
	available       *AvailableUpdate
	progressPercent int
	lastCheckTime   time.Time
	errorMessage    string
	cancelled       bool
	installing      bool

	cronSched *cron.Cron
	cronID    cron.EntryID
	checkURL  string
}

// New constructs an Engine. currentVersion is the tag_name this running
// image reports itself as, used for the check_update string-inequality
// comparison.
func New(store kv.Store, currentVersion string) *Engine {
	return &Engine{
		store:          store,
		client:         &http.Client{Timeout: 30 * time.Second},
		state:          Idle,
		currentVersion: currentVersion,
	}
}

// Init confirms a pending image as valid if one was left pending by a
// prior install (equivalent to a successful boot confirmation), and
// starts (disabled) the periodic check scheduler.
func (e *Engine) Init() error {
	pending, err := e.store.GetBlob(namespace, pendingVerifyKey)
	if err == nil && len(pending) > 0 && pending[0] == 1 {
		appLog.Info("ota: confirming pending image valid on boot")
		if err := e.MarkValid(); err != nil {
			return err
		}
	}

	e.cronSched = cron.New()
	e.cronSched.Start()
	return nil
}

// SetAutoCheckInterval schedules a periodic check_update call every
// hours hours against url. 0 disables it.
func (e *Engine) SetAutoCheckInterval(hours int, url string) error {
	e.mu.Lock()
	if e.cronID != 0 {
		e.cronSched.Remove(e.cronID)
		e.cronID = 0
	}
	e.checkURL = url
	e.mu.Unlock()

	if hours <= 0 {
		return nil
	}

	spec := "@every " + time.Duration(hours*int(time.Hour)).String()
	id, err := e.cronSched.AddFunc(spec, func() {
		if err := e.CheckUpdate(context.Background(), url); err != nil {
			appLog.Error("ota: scheduled check_update failed", err)
		}
	})
	if err != nil {
		return perr.Wrap(perr.InvalidArgument, "ota.set_auto_check_interval", spec, err)
	}

	e.mu.Lock()
	e.cronID = id
	e.mu.Unlock()
	return nil
}

// CheckUpdate fetches the manifest and, per spec §4.5, sets
// update_available using plain string inequality against current_version
// — never semver ordering, since manifests may use arbitrary tag names.
func (e *Engine) CheckUpdate(ctx context.Context, url string) error {
	e.mu.Lock()
	e.state = Checking
	e.mu.Unlock()

	manifest, err := fetchManifest(ctx, e.client, url)
	if err != nil {
		e.mu.Lock()
		e.state = Error
		e.errorMessage = err.Error()
		e.mu.Unlock()
		return err
	}

	asset, ok := findFirmwareAsset(manifest)
	if !ok {
		e.mu.Lock()
		e.state = Error
		e.errorMessage = "manifest has no pin_firmware.bin asset"
		e.mu.Unlock()
		return perr.New(perr.NotFound, "ota.check_update", "no firmware asset in manifest")
	}

	e.mu.Lock()
	e.available = &AvailableUpdate{
		Version:     manifest.TagName,
		ReleaseNote: manifest.Body,
		Asset:       asset,
	}
	e.lastCheckTime = time.Now()
	e.state = Idle
	e.mu.Unlock()

	return nil
}

func findFirmwareAsset(m Manifest) (Asset, bool) {
	for _, a := range m.Assets {
		if strings.Contains(a.Name, firmwareAssetMarker) {
			return a, true
		}
	}
	return Asset{}, false
}

func fetchManifest(ctx context.Context, client *http.Client, url string) (Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Manifest{}, perr.Wrap(perr.InvalidArgument, "ota.fetch_manifest", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Manifest{}, perr.Wrap(perr.Timeout, "ota.fetch_manifest", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Manifest{}, perr.New(perr.StorageFail, "ota.fetch_manifest", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Manifest{}, perr.Wrap(perr.Timeout, "ota.fetch_manifest", url, err)
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return Manifest{}, perr.Wrap(perr.InvalidArgument, "ota.fetch_manifest", "malformed manifest", err)
	}
	return m, nil
}

// Status returns a read-only snapshot for the HTTP surface.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:           e.state,
		ProgressPercent: e.progressPercent,
		CurrentVersion:  e.currentVersion,
		AvailableUpdate: e.available,
		UpdateAvailable: e.available != nil && e.available.Version != e.currentVersion,
		LastCheckTime:   e.lastCheckTime,
		ErrorMessage:    e.errorMessage,
	}
}

// MarkValid confirms the currently running image, clearing the
// pending-verify flag.
func (e *Engine) MarkValid() error {
	return e.store.SetBlob(namespace, pendingVerifyKey, []byte{0})
}

// Rollback clears the pending-verify flag, the same write MarkValid
// makes, and leaves the staged image in place. It records no marker
// that the running image is invalid and does not reboot.
func (e *Engine) Rollback() error {
	return e.store.SetBlob(namespace, pendingVerifyKey, []byte{0})
}
