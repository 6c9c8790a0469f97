package ota

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "pin/internal/log"
	"pin/internal/perr"
)

const installChunkSize = 32 * 1024

// StartUpdate spawns a worker that streams the available update's asset
// to a staging file, reporting progress and yielding briefly between
// chunks so CancelUpdate can take effect promptly (spec §4.5).
func (e *Engine) StartUpdate(ctx context.Context, stagingDir string, progress ProgressFunc, complete CompleteFunc) error {
	e.mu.Lock()
	if e.available == nil {
		e.mu.Unlock()
		return perr.New(perr.InvalidState, "ota.start_update", "no update available")
	}
	if e.installing {
		e.mu.Unlock()
		return perr.New(perr.InvalidState, "ota.start_update", "update already in progress")
	}
	e.installing = true
	e.cancelled = false
	e.state = Downloading
	e.progressPercent = 0
	asset := e.available.Asset
	version := e.available.Version
	e.mu.Unlock()

	go e.runInstall(ctx, stagingDir, asset, version, progress, complete)
	return nil
}

// CancelUpdate sets the cancellation flag; the worker aborts at its
// next chunk boundary.
func (e *Engine) CancelUpdate() {
	e.mu.Lock()
	e.cancelled = true
	e.mu.Unlock()
}

func (e *Engine) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

func (e *Engine) runInstall(ctx context.Context, stagingDir string, asset Asset, version string, progress ProgressFunc, complete CompleteFunc) {
	defer func() {
		e.mu.Lock()
		e.installing = false
		e.mu.Unlock()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		e.fail(err, complete)
		return
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.fail(err, complete)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.fail(perr.New(perr.StorageFail, "ota.start_update", resp.Status), complete)
		return
	}

	stagingFile := filepath.Join(stagingDir, stagingPath)
	if err := os.MkdirAll(stagingDir, 0o700); err != nil {
		e.fail(err, complete)
		return
	}
	out, err := os.Create(stagingFile)
	if err != nil {
		e.fail(err, complete)
		return
	}
	defer out.Close()

	total := asset.Size
	if total == 0 {
		total = resp.ContentLength
	}

	var downloaded int64
	buf := make([]byte, installChunkSize)

	for {
		if e.isCancelled() {
			appLog.Info("ota: update cancelled", "version", version, "downloaded", downloaded)
			e.mu.Lock()
			e.state = Error
			e.errorMessage = "cancelled"
			e.mu.Unlock()
			if complete != nil {
				complete(false)
			}
			return
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				e.fail(writeErr, complete)
				return
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
			e.mu.Lock()
			if total > 0 {
				e.progressPercent = int(downloaded * 100 / total)
			}
			e.mu.Unlock()
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			e.fail(readErr, complete)
			return
		}

		time.Sleep(time.Millisecond)
	}

	if err := out.Sync(); err != nil {
		e.fail(err, complete)
		return
	}

	e.mu.Lock()
	e.state = Installing
	e.mu.Unlock()

	if err := e.store.SetBlob(namespace, pendingVerifyKey, []byte{1}); err != nil {
		e.fail(err, complete)
		return
	}
	if err := e.store.SetBlob(namespace, currentVersionKey, []byte(version)); err != nil {
		e.fail(err, complete)
		return
	}

	e.mu.Lock()
	e.state = Complete
	e.progressPercent = 100
	e.mu.Unlock()

	appLog.Info("ota: update downloaded and staged", "version", version)
	if complete != nil {
		complete(true)
	}
}

func (e *Engine) fail(err error, complete CompleteFunc) {
	appLog.Error("ota: update failed", err)
	e.mu.Lock()
	e.state = Error
	e.errorMessage = err.Error()
	e.mu.Unlock()
	if complete != nil {
		complete(false)
	}
}
