package panel

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickalie/wingship/internal/core/provision"
)

func testNode() *provision.NodeRequest {
	return &provision.NodeRequest{
		Name:               "node1",
		LocationID:         3,
		FQDN:               "node1.example.com",
		Memory:             8192,
		MemoryOverallocate: 10000,
		Disk:               50000,
		DiskOverallocate:   1000,
		UploadSize:         500,
	}
}

func TestRegisterNode(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/application/nodes", r.URL.Path)
		assert.Equal(t, "Bearer ptla_secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"object":"node","attributes":{"id":17,"name":"node1"}}`))
	}))
	defer server.Close()

	reg, err := NewClient(server.URL+"/", "ptla_secret").RegisterNode(context.Background(), testNode())
	require.NoError(t, err)
	assert.Equal(t, 17, reg.ID)

	assert.Equal(t, map[string]interface{}{
		"name":                "node1",
		"location_id":         float64(3),
		"fqdn":                "node1.example.com",
		"scheme":              "https",
		"memory":              float64(8192),
		"memory_overallocate": float64(10000),
		"disk":                float64(50000),
		"disk_overallocate":   float64(1000),
		"upload_size":         float64(500),
		"daemon_sftp":         float64(2022),
		"daemon_listen":       float64(8080),
	}, got)
}

func TestRegisterNode_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  int
		errContains string
	}{
		{
			name:        "validation failure",
			status:      http.StatusUnprocessableEntity,
			body:        `{"errors":[{"code":"ValidationException","detail":"The fqdn field is required."}]}`,
			wantStatus:  http.StatusUnprocessableEntity,
			errContains: "The fqdn field is required.",
		},
		{
			name:        "unauthorized",
			status:      http.StatusUnauthorized,
			body:        `{"errors":[{"code":"AuthenticationException"}]}`,
			wantStatus:  http.StatusUnauthorized,
			errContains: "returned 401",
		},
		{
			name:        "malformed body",
			status:      http.StatusCreated,
			body:        `<html>`,
			wantStatus:  http.StatusCreated,
			errContains: "parse response",
		},
		{
			name:        "missing id",
			status:      http.StatusCreated,
			body:        `{"attributes":{}}`,
			wantStatus:  http.StatusCreated,
			errContains: "no node id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "ptla_secret").RegisterNode(context.Background(), testNode())

			var apiErr *provision.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestRegisterNode_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url, "ptla_secret").RegisterNode(context.Background(), testNode())

	var apiErr *provision.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Zero(t, apiErr.Status)
	assert.Equal(t, url+"/api/application/nodes", apiErr.Endpoint)
}

func TestRegisterNode_Cancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(server.URL, "ptla_secret").RegisterNode(ctx, testNode())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
