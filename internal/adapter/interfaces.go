// SPDX-License-Identifier: Apache-2.0

// Package adapter provides transport-layer abstractions for exchanging
// operations with a remote sync store.
//
// The primary abstraction is [Transport], which decouples the sync engine
// from the underlying protocol and provider (dedicated server, WebDAV, file
// based). The package ships an HTTP/REST implementation
// ([NewHTTPTransport]); file-based providers live outside this module and
// only need to satisfy the same interface.
//
// Error values defined in errors.go are mapped from HTTP status codes by
// mapHTTPError so that callers can use [errors.Is] for transport-agnostic
// error handling (e.g. [ErrConflict] for 409, [ErrUnauthorized] for 401).
package adapter

import (
	"context"

	"github.com/mkarpushin/tasksync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/transport_mock.go -package=mock

// Transport defines transport-agnostic communication with the remote
// operation store. Implementations are responsible for serialisation,
// authentication header management, and mapping transport-level errors to the
// sentinel values defined in this package.
//
// The cursor accessors persist the client's last-applied remote sequence in
// the provider's own metadata area, so switching providers never replays one
// provider's cursor against another's history.
type Transport interface {
	// SetToken stores the bearer token attached to all subsequent requests.
	SetToken(token string)

	// Token returns the bearer token currently stored, or an empty string.
	Token() string

	// UploadOps pushes a batch of locally authored operations. The server may
	// accept some, reject some, and piggyback operations from other clients
	// in the same response.
	UploadOps(ctx context.Context, ops []models.Operation, clientID string) (models.UploadResponse, error)

	// DownloadOps requests operations after sinceSeq, excluding those
	// authored by excludeClientID so a client never receives its own writes
	// back. limit caps the page size; zero means the server default. The
	// response may be a full-state snapshot only when sinceSeq is zero.
	DownloadOps(ctx context.Context, sinceSeq int64, excludeClientID string, limit int) (models.DownloadResponse, error)

	// UploadSnapshot replaces the remote history with a full application
	// state. Used to reseed an empty remote after a server migration and to
	// force-resolve whole-state conflicts with the local side.
	UploadSnapshot(ctx context.Context, snap models.SnapshotUpload) error

	// GetLastServerSeq returns the persisted remote-sequence cursor.
	GetLastServerSeq(ctx context.Context) (int64, error)

	// SetLastServerSeq persists the remote-sequence cursor. Callers must
	// invoke it only after downloaded operations are durably stored locally.
	SetLastServerSeq(ctx context.Context, seq int64) error

	// GetRestorePoints lists the most recent recoverable points in remote
	// history, newest first.
	GetRestorePoints(ctx context.Context, limit int) ([]models.RestorePoint, error)

	// GetStateAtSeq materializes the full remote state at the given sequence.
	GetStateAtSeq(ctx context.Context, seq int64) (models.StateAtSeq, error)
}
