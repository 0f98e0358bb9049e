// Package panel registers nodes with a Pterodactyl panel through its application API.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-logr/logr"

	"github.com/nickalie/wingship/internal/core/provision"
)

const (
	nodesPath = "/api/application/nodes"

	// Every node is served over TLS on the daemon's standard ports.
	scheme       = "https"
	daemonSFTP   = 2022
	daemonListen = 8080
)

// Client implements provision.Registrar.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        logr.Logger
}

// ClientOption defines functional options for Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a panel client for the panel at baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{},
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createNodeRequest struct {
	Name               string `json:"name"`
	LocationID         int    `json:"location_id"`
	FQDN               string `json:"fqdn"`
	Scheme             string `json:"scheme"`
	Memory             int    `json:"memory"`
	MemoryOverallocate int    `json:"memory_overallocate"`
	Disk               int    `json:"disk"`
	DiskOverallocate   int    `json:"disk_overallocate"`
	UploadSize         int    `json:"upload_size"`
	DaemonSFTP         int    `json:"daemon_sftp"`
	DaemonListen       int    `json:"daemon_listen"`
}

type nodeResponse struct {
	Attributes struct {
		ID int `json:"id"`
	} `json:"attributes"`
}

// RegisterNode creates a node and returns the identifier assigned by the panel.
// The call is made once; failures are not retried.
func (c *Client) RegisterNode(ctx context.Context, req *provision.NodeRequest) (*provision.Registration, error) {
	endpoint := c.baseURL + nodesPath

	payload, err := json.Marshal(createNodeRequest{
		Name:               req.Name,
		LocationID:         req.LocationID,
		FQDN:               req.FQDN,
		Scheme:             scheme,
		Memory:             req.Memory,
		MemoryOverallocate: req.MemoryOverallocate,
		Disk:               req.Disk,
		DiskOverallocate:   req.DiskOverallocate,
		UploadSize:         req.UploadSize,
		DaemonSFTP:         daemonSFTP,
		DaemonListen:       daemonListen,
	})
	if err != nil {
		return nil, fmt.Errorf("encode node request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &provision.APIError{Endpoint: endpoint, Cause: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.V(1).Info("Registering node", "endpoint", endpoint, "node", req.Name)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &provision.APIError{Endpoint: endpoint, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provision.APIError{Endpoint: endpoint, Status: resp.StatusCode, Cause: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provision.APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var node nodeResponse
	if err := json.Unmarshal(body, &node); err != nil {
		return nil, &provision.APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(body), Cause: fmt.Errorf("parse response: %w", err)}
	}
	if node.Attributes.ID == 0 {
		return nil, &provision.APIError{Endpoint: endpoint, Status: resp.StatusCode, Body: string(body), Cause: fmt.Errorf("response carries no node id")}
	}

	return &provision.Registration{ID: node.Attributes.ID}, nil
}
