// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mkarpushin/tasksync/internal/adapter"
	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/models"
)

// MaxLWWReuploadRetries bounds the re-upload rounds after the initial upload.
// Compensating local-win operations created while folding remote history feed
// another upload, which can in turn surface more concurrent rounds; without a
// bound a pathological interleaving could loop forever.
const MaxLWWReuploadRetries = 3

// SyncOrchestrator is the top-level sync state machine. It enforces
// single-flight cycles, runs download strictly before upload, drives the
// bounded re-upload loop, and publishes the resulting status.
type SyncOrchestrator struct {
	downloader Downloader
	uploader   Uploader
	logger     *logger.Logger

	mu              sync.Mutex
	cond            *sync.Cond
	syncInProgress  bool
	exclusiveActive bool
	status          models.SyncStatus
	onStatusChange  func(models.SyncStatus)
}

// NewSyncOrchestrator wires the sync state machine.
func NewSyncOrchestrator(downloader Downloader, uploader Uploader, lg *logger.Logger) *SyncOrchestrator {
	s := &SyncOrchestrator{
		downloader: downloader,
		uploader:   uploader,
		logger:     lg,
		status:     models.StatusUnknownOrChanged,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Sync runs one full cycle: download, then upload, then bounded re-upload
// rounds while compensating operations keep appearing. A cycle refused
// because another is in flight returns [ErrSyncInProgress] without touching
// the published status.
func (s *SyncOrchestrator) Sync(ctx context.Context) error {
	if !s.begin() {
		return ErrSyncInProgress
	}
	defer s.end()

	s.setStatus(models.StatusSyncing)

	dl, err := s.downloader.Download(ctx)
	if err != nil {
		s.setStatus(models.StatusError)
		return fmt.Errorf("sync download: %w", err)
	}
	if dl.Cancelled {
		// A cancelled conflict decision is a handled outcome, not a failure:
		// nothing changed, and local work still awaits a push.
		s.setStatus(models.StatusUnknownOrChanged)
		return nil
	}

	terminalRejections := 0
	retries := 0
	for {
		up, err := s.uploader.Upload(ctx)
		if err != nil {
			s.setStatus(models.StatusError)
			return fmt.Errorf("sync upload: %w", err)
		}
		if up.Blocked {
			s.setStatus(models.StatusUnknownOrChanged)
			return nil
		}

		if t := up.RejectedCount - up.RecoverableRejections; t > 0 {
			terminalRejections += t
		}

		again := up.LocalWinOpsCreated > 0 || up.RedownloadNeeded
		if !again {
			break
		}
		if retries >= MaxLWWReuploadRetries {
			s.logger.Warn().Int("retries", retries).Msg("re-upload retries exhausted with operations still pending")
			s.setStatus(models.StatusUnknownOrChanged)
			return ErrOpsStillPending
		}
		retries++

		if up.RedownloadNeeded {
			if _, err = s.downloader.Redownload(ctx, up.RedownloadFromZero); err != nil {
				s.setStatus(models.StatusError)
				return fmt.Errorf("sync re-download: %w", err)
			}
		}
	}

	if terminalRejections > 0 {
		s.setStatus(models.StatusError)
		return fmt.Errorf("%w: %d terminal", ErrOpsRejected, terminalRejections)
	}

	s.setStatus(models.StatusInSync)
	return nil
}

// IsSyncInProgress reports whether a cycle is currently running.
func (s *SyncOrchestrator) IsSyncInProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncInProgress
}

// RunExclusive waits for any in-flight cycle to finish, then runs fn while
// blocking new cycles. Used for operations that must not interleave with a
// sync, such as restore.
func (s *SyncOrchestrator) RunExclusive(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	for s.syncInProgress || s.exclusiveActive {
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return err
		}
		s.cond.Wait()
	}
	s.exclusiveActive = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.exclusiveActive = false
		s.cond.Broadcast()
		s.mu.Unlock()
	}()

	return fn(ctx)
}

// Status returns the status published by the last completed cycle.
func (s *SyncOrchestrator) Status() models.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetOnStatusChange registers a callback invoked on every status transition.
// The callback runs outside the orchestrator lock.
func (s *SyncOrchestrator) SetOnStatusChange(fn func(models.SyncStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatusChange = fn
}

func (s *SyncOrchestrator) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncInProgress || s.exclusiveActive {
		return false
	}
	s.syncInProgress = true
	return true
}

func (s *SyncOrchestrator) end() {
	s.mu.Lock()
	s.syncInProgress = false
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *SyncOrchestrator) setStatus(status models.SyncStatus) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	fn := s.onStatusChange
	s.mu.Unlock()

	if changed && fn != nil {
		fn(status)
	}
}

// IsTimeoutError reports whether err looks like a transient network timeout,
// the class of failure worth retrying with backoff.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, adapter.ErrGatewayTimeout) ||
		errors.Is(err, adapter.ErrBadGateway) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "504")
}
