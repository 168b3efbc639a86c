package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/beacon-proximity/internal/registry"
)

func TestSendBatch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"changed":true,"resolved":1,"dropped":0,"triggered":1,"refreshed":0}`))
	}))
	defer srv.Close()

	res, err := sendBatch(context.Background(), srv.Client(), srv.URL+"/",
		[]byte(`{"sightings":[{"uuid":"B9407F30-F5F8-466E-AFF9-25556B57FE6D","major":1,"minor":1,"proximity":"near","accuracy":1.2}]}`))

	require.NoError(t, err)
	assert.Equal(t, "/api/v1/sightings", gotPath)
	assert.True(t, res.Changed)
	assert.Equal(t, 1, res.Triggered)
}

func TestSendBatch_RejectsBadFileBeforePosting(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	for _, body := range []string{
		`{"sightings":[{"proximity":"sideways"}]}`,
		`{"sightings":[{"uuid":"B9407F30-F5F8-466E-AFF9-25556B57FE6D","major":1,"minor":1}]}`,
	} {
		_, err := sendBatch(context.Background(), srv.Client(), srv.URL, []byte(body))
		assert.ErrorContains(t, err, "parse batch", body)
	}
	assert.False(t, called)
}

func TestSendBatch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":"INVALID_BATCH"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := sendBatch(context.Background(), srv.Client(), srv.URL, []byte(`{"sightings":[]}`))

	assert.ErrorContains(t, err, "400")
}

func TestPrintBeacons(t *testing.T) {
	var buf bytes.Buffer
	err := printBeacons(&buf, []registry.Beacon{
		{ID: "lobby", Name: "Lobby", UUID: "b9407f30-f5f8-466e-aff9-25556b57fe6d", Major: 1, Minor: 2,
			UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ID")
	assert.Contains(t, buf.String(), "lobby")
	assert.Contains(t, buf.String(), "2026-01-01T00:00:00Z")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := rootCmd()

	cmd, _, err := root.Find([]string{"beacons", "add"})
	require.NoError(t, err)
	assert.Equal(t, "add", cmd.Name())
	assert.NotNil(t, cmd.Flags().Lookup("uuid"))

	cmd, _, err = root.Find([]string{"sightings", "send"})
	require.NoError(t, err)
	assert.NotNil(t, cmd.Flags().Lookup("api"))
}
