package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/DmMeta/ChordSeek/internal/chord"
	apperr "github.com/DmMeta/ChordSeek/internal/errors"
)

// Client is the outgoing side of the RPC surface. One instance serves every
// peer: connections are pooled per peer address by the underlying HTTP
// transport, so repeated calls to the same node reuse a warm connection.
//
// Read-only lookup RPCs are retried; mutating RPCs are sent exactly once.
type Client struct {
	lookup *retryablehttp.Client
	mutate *http.Client
	log    *slog.Logger
}

// NewClient builds a pooled RPC client.
func NewClient(log *slog.Logger) *Client {
	base := otelhttp.NewTransport(&http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	})

	lookup := retryablehttp.NewClient()
	lookup.HTTPClient = &http.Client{Transport: base}
	lookup.RetryMax = 3
	lookup.RetryWaitMin = 50 * time.Millisecond
	lookup.RetryWaitMax = time.Second
	lookup.Logger = nil

	return &Client{
		lookup: lookup,
		mutate: &http.Client{Transport: base},
		log:    log,
	}
}

// --- chord.Transport ---

func (c *Client) FindSuccessor(ctx context.Context, addr string, keyID uint64) (chord.NodeRef, error) {
	var ref chord.NodeRef
	err := c.get(ctx, addr, "/chord/find-successor", url.Values{"key_id": {fmt.Sprint(keyID)}}, &ref)
	return ref, err
}

func (c *Client) GetSuccessor(ctx context.Context, addr string) (chord.NodeRef, error) {
	var ref chord.NodeRef
	err := c.get(ctx, addr, "/chord/successor", nil, &ref)
	return ref, err
}

func (c *Client) GetPredecessor(ctx context.Context, addr string) (chord.NodeRef, error) {
	var ref chord.NodeRef
	err := c.get(ctx, addr, "/chord/predecessor", nil, &ref)
	return ref, err
}

func (c *Client) SetSuccessor(ctx context.Context, addr, successorAddr string) error {
	return c.send(ctx, http.MethodPut, addr, "/chord/successor", setNeighborRequest{IPAddr: successorAddr}, nil)
}

func (c *Client) SetPredecessor(ctx context.Context, addr, predecessorAddr string) error {
	return c.send(ctx, http.MethodPut, addr, "/chord/predecessor", setNeighborRequest{IPAddr: predecessorAddr}, nil)
}

func (c *Client) ClosestPrecedingFinger(ctx context.Context, addr string, keyID uint64) (chord.NodeRef, error) {
	var ref chord.NodeRef
	err := c.get(ctx, addr, "/chord/closest-preceding-finger", url.Values{"key_id": {fmt.Sprint(keyID)}}, &ref)
	return ref, err
}

func (c *Client) UpdateFingerTable(ctx context.Context, addr, joiningAddr string, index int) error {
	return c.send(ctx, http.MethodPost, addr, "/chord/fingers/update",
		fingerUpdateRequest{IPAddr: joiningAddr, Index: index}, nil)
}

func (c *Client) FixFingerTable(ctx context.Context, addr, leaverAddr, successorAddr string, index int) error {
	return c.send(ctx, http.MethodPost, addr, "/chord/fingers/fix",
		fixFingerRequest{IPAddr: leaverAddr, SuccessorIPAddr: successorAddr, Index: index}, nil)
}

func (c *Client) RequestData(ctx context.Context, addr string, nodeID uint64) ([]chord.Record, error) {
	var out recordsPayload
	if err := c.send(ctx, http.MethodPost, addr, "/data/request", dataRequest{NodeID: nodeID}, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) StoreRecords(ctx context.Context, addr string, records []chord.Record) error {
	return c.send(ctx, http.MethodPost, addr, "/data/store", recordsPayload{Data: records}, nil)
}

// --- operator RPCs ---

// Join drives the join RPC on addr.
func (c *Client) Join(ctx context.Context, addr, bootstrapAddr string, init, transferData bool) (int64, error) {
	var out hopsResponse
	err := c.send(ctx, http.MethodPost, addr, "/chord/join",
		joinRequest{IPAddr: bootstrapAddr, Init: init, TransferData: transferData}, &out)
	return out.NumHops, err
}

// Leave drives the leave RPC on addr.
func (c *Client) Leave(ctx context.Context, addr string) (int64, error) {
	var out hopsResponse
	err := c.send(ctx, http.MethodPost, addr, "/chord/leave", nil, &out)
	return out.NumHops, err
}

// ClearHops resets addr's hop counter and returns the previous value.
func (c *Client) ClearHops(ctx context.Context, addr string) (int64, error) {
	var out hopsResponse
	err := c.send(ctx, http.MethodPost, addr, "/chord/hops/clear", nil, &out)
	return out.NumHops, err
}

// GetFingerTable returns addr's finger table.
func (c *Client) GetFingerTable(ctx context.Context, addr string) ([]chord.FingerEntry, error) {
	var out fingerTableResponse
	if err := c.get(ctx, addr, "/data/finger-table", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetData returns addr's records for one education with at least minAwards awards.
func (c *Client) GetData(ctx context.Context, addr, education string, minAwards int) ([]chord.Record, error) {
	var out recordsPayload
	query := url.Values{"education": {education}, "max_awards": {fmt.Sprint(minAwards)}}
	if err := c.get(ctx, addr, "/data/records", query, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// --- plumbing ---

func endpoint(addr, path string, query url.Values) string {
	u := url.URL{Scheme: "http", Host: addr, Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// get issues a retried read-only request.
func (c *Client) get(ctx context.Context, addr, path string, query url.Values, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint(addr, path, query), nil)
	if err != nil {
		return apperr.Internal("building request", err)
	}

	resp, err := c.lookup.Do(req)
	if err != nil {
		c.log.Debug("lookup rpc failed", "peer", addr, "path", path, "error", err)
		return apperr.Unavailable("GET "+path, addr, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, addr, path, out)
}

// send issues a request exactly once. Mutating RPCs are not idempotent and
// must never be retried.
func (c *Client) send(ctx context.Context, method, addr, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return apperr.Internal("encoding request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint(addr, path, nil), body)
	if err != nil {
		return apperr.Internal("building request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.mutate.Do(req)
	if err != nil {
		c.log.Debug("mutating rpc failed", "peer", addr, "path", path, "error", err)
		return apperr.Unavailable(method+" "+path, addr, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, addr, path, out)
}

func decodeResponse(resp *http.Response, addr, path string, out any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		var remote struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&remote); err != nil || remote.Code == "" {
			return apperr.Unavailable(path, addr, fmt.Errorf("status %d", resp.StatusCode))
		}
		return apperr.FromWire(remote.Code, fmt.Sprintf("%s on %s: %s", path, addr, remote.Message))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Unavailable("decoding "+path, addr, err)
	}
	return nil
}
