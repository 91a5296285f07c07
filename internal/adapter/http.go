// SPDX-License-Identifier: Apache-2.0

package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/mkarpushin/tasksync/internal/config"
	"github.com/mkarpushin/tasksync/internal/logger"
	"github.com/mkarpushin/tasksync/models"
)

type httpTransport struct {
	client *resty.Client

	token string

	logger *logger.Logger
}

// NewHTTPTransport constructs an HTTP/REST implementation of [Transport].
// It normalises and validates the base URL from adapterCfg.HTTPAddress and
// configures the underlying HTTP client with the resolved base URL and
// request timeout.
//
// Returns an error if adapterCfg.HTTPAddress is empty or cannot be parsed as
// a valid URL.
func NewHTTPTransport(adapterCfg config.ClientAdapter, log *logger.Logger) (Transport, error) {
	baseURL, err := normalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(adapterCfg.RequestTimeout)

	return &httpTransport{client: client, logger: log}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [Transport]. It stores token (whitespace-trimmed) for
// use in the Authorization header of all subsequent requests. A warning is
// logged when the token is already past its expiry claim; the request is
// still attempted since expiry validation is the server's call.
func (h *httpTransport) SetToken(token string) {
	h.token = strings.TrimSpace(token)

	if expired, err := tokenExpired(h.token); err == nil && expired {
		h.logger.Warn().Msg("sync token is past its expiry claim")
	}
}

// Token implements [Transport]. It returns the bearer token currently held by
// the transport, or an empty string if none has been set.
func (h *httpTransport) Token() string {
	return h.token
}

func (h *httpTransport) request(ctx context.Context) *resty.Request {
	req := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json")
	if h.token != "" {
		req.SetAuthToken(h.token)
	}
	return req
}

type uploadOpsRequest struct {
	ClientID string             `json:"clientId"`
	Ops      []models.Operation `json:"ops"`
}

// UploadOps implements [Transport]. It POSTs the batch to POST /api/sync/ops
// and returns the server's per-operation verdicts, piggybacked operations,
// and rejection list. Returns an error if the request fails or the server
// responds with a non-2xx status.
func (h *httpTransport) UploadOps(ctx context.Context, ops []models.Operation, clientID string) (models.UploadResponse, error) {
	var out models.UploadResponse

	resp, err := h.request(ctx).
		SetBody(uploadOpsRequest{ClientID: clientID, Ops: ops}).
		SetResult(&out).
		Post("/api/sync/ops")
	if err != nil {
		return models.UploadResponse{}, fmt.Errorf("upload ops request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.UploadResponse{}, err
	}

	return out, nil
}

// DownloadOps implements [Transport]. It GETs one page of remote history from
// GET /api/sync/ops. excludeClientID keeps the caller's own writes out of the
// response; limit of zero defers to the server default.
func (h *httpTransport) DownloadOps(ctx context.Context, sinceSeq int64, excludeClientID string, limit int) (models.DownloadResponse, error) {
	var out models.DownloadResponse

	req := h.request(ctx).
		SetQueryParam("since", strconv.FormatInt(sinceSeq, 10)).
		SetResult(&out)
	if excludeClientID != "" {
		req.SetQueryParam("excludeClient", excludeClientID)
	}
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get("/api/sync/ops")
	if err != nil {
		return models.DownloadResponse{}, fmt.Errorf("download ops request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.DownloadResponse{}, err
	}

	return out, nil
}

// UploadSnapshot implements [Transport]. It PUTs the full application state
// to PUT /api/sync/snapshot, replacing remote history.
func (h *httpTransport) UploadSnapshot(ctx context.Context, snap models.SnapshotUpload) error {
	resp, err := h.request(ctx).
		SetBody(snap).
		Put("/api/sync/snapshot")
	if err != nil {
		return fmt.Errorf("upload snapshot request: %w", err)
	}
	return mapHTTPError(resp)
}

type serverSeqPayload struct {
	Seq int64 `json:"seq"`
}

// GetLastServerSeq implements [Transport].
func (h *httpTransport) GetLastServerSeq(ctx context.Context) (int64, error) {
	var out serverSeqPayload

	resp, err := h.request(ctx).
		SetResult(&out).
		Get("/api/sync/cursor")
	if err != nil {
		return 0, fmt.Errorf("get cursor request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return 0, err
	}

	return out.Seq, nil
}

// SetLastServerSeq implements [Transport].
func (h *httpTransport) SetLastServerSeq(ctx context.Context, seq int64) error {
	resp, err := h.request(ctx).
		SetBody(serverSeqPayload{Seq: seq}).
		Put("/api/sync/cursor")
	if err != nil {
		return fmt.Errorf("set cursor request: %w", err)
	}
	return mapHTTPError(resp)
}

// GetRestorePoints implements [Transport]. It lists recoverable points from
// GET /api/sync/restore-points, newest first.
func (h *httpTransport) GetRestorePoints(ctx context.Context, limit int) ([]models.RestorePoint, error) {
	var out []models.RestorePoint

	req := h.request(ctx).SetResult(&out)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}

	resp, err := req.Get("/api/sync/restore-points")
	if err != nil {
		return nil, fmt.Errorf("get restore points request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	return out, nil
}

// GetStateAtSeq implements [Transport]. It materializes the remote state at
// the given sequence via GET /api/sync/state-at.
func (h *httpTransport) GetStateAtSeq(ctx context.Context, seq int64) (models.StateAtSeq, error) {
	var out models.StateAtSeq

	resp, err := h.request(ctx).
		SetQueryParam("seq", strconv.FormatInt(seq, 10)).
		SetResult(&out).
		Get("/api/sync/state-at")
	if err != nil {
		return models.StateAtSeq{}, fmt.Errorf("get state at seq request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.StateAtSeq{}, err
	}

	return out, nil
}
