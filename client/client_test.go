package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetResourceCaches(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		json.NewEncoder(w).Encode(Resource{
			ResourceInstanceID: "c07a0def-0000-0000-0000-000000000001",
			GraphID:            "c07a0def-0000-0000-0000-000000000002",
			DisplayName:        "Sphinx",
		})
	}))
	defer server.Close()

	c := New(server.URL)
	ctx := context.Background()

	first, err := c.GetResource(ctx, "c07a0def-0000-0000-0000-000000000001")
	if err != nil {
		t.Fatal(err)
	}
	if first.DisplayName != "Sphinx" {
		t.Fatalf("unexpected display name %q", first.DisplayName)
	}

	if _, err := c.GetResource(ctx, "c07a0def-0000-0000-0000-000000000001"); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Fatalf("expected one upstream request, got %d", hits)
	}
}

func TestSaveTileSendsActorHeaders(t *testing.T) {
	var gotUser, gotReviewer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Header.Get("X-Actor-Id")
		gotReviewer = r.Header.Get("X-Actor-Reviewer")
		json.NewEncoder(w).Encode(map[string]string{"tileid": "tile-1"})
	}))
	defer server.Close()

	c := New(server.URL)
	actor := &Actor{UserID: "editor-1", Username: "editor", Reviewer: true}

	id, err := c.SaveTile(context.Background(), Tile{
		ResourceInstanceID: "c07a0def-0000-0000-0000-000000000001",
		NodeGroupID:        "c07a0def-0000-0000-0000-000000000003",
		Data:               map[string]any{"n": "v"},
	}, actor)
	if err != nil {
		t.Fatal(err)
	}
	if id != "tile-1" {
		t.Fatalf("unexpected tile id %q", id)
	}
	if gotUser != "editor-1" || gotReviewer != "true" {
		t.Fatalf("actor headers not sent: user=%q reviewer=%q", gotUser, gotReviewer)
	}
}

func TestSaveResourceSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "this model is not yet active; unable to save"})
	}))
	defer server.Close()

	c := New(server.URL)

	_, err := c.SaveResource(context.Background(), Resource{GraphID: "c07a0def-0000-0000-0000-000000000002"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
}
