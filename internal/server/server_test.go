package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/incydecy/internal/database"
	"github.com/TobiSchelling/incydecy/internal/karma"
	"github.com/TobiSchelling/incydecy/internal/report"
	"github.com/TobiSchelling/incydecy/internal/source"
)

const guild = "g1"

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *database.DB, contents ...string) {
	t.Helper()
	tally := karma.NewTally()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, c := range contents {
		tally.Add(source.Record{
			ID:       fmt.Sprintf("m%d", i),
			AuthorID: "author",
			Content:  &c,
			TimeSent: base.Add(time.Duration(i) * time.Minute),
		})
	}
	if _, err := db.Reconcile(context.Background(), guild, tally); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
}

func newServer(t *testing.T, db *database.DB) *Server {
	t.Helper()
	srv, err := New(db, guild, 10)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "apples++", "apples++", "bananas--")
	srv := newServer(t, db)

	rec := get(srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Karma leaderboard", `<table class="go-pretty-table">`, "apples", "bananas", "3 messages"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
}

func TestIndexRouteEmpty(t *testing.T) {
	srv := newServer(t, openTestDB(t))

	rec := get(srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No karma recorded yet") {
		t.Error("expected empty leaderboard notice")
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newServer(t, openTestDB(t))

	if rec := get(srv, "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestThingRoute(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "apples++", "apples--", "apples++")
	srv := newServer(t, db)

	rec := get(srv, "/thing/apples")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "apples--") {
		t.Error("expected message content in response body")
	}
	if !strings.Contains(body, `<span class="karma">1</span>`) {
		t.Error("expected current value 1 in response body")
	}
}

func TestThingRouteNotFound(t *testing.T) {
	srv := newServer(t, openTestDB(t))

	rec := get(srv, "/thing/ghost")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No karma recorded for") {
		t.Error("expected not-found notice")
	}
}

func TestAPILeaderboard(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "a++", "b++", "b++", "c--")
	srv := newServer(t, db)

	rec := get(srv, "/api/leaderboard?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var got report.Leaderboard
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	want := []karma.Score{{Thing: "b", Value: 2}, {Thing: "a", Value: 1}}
	if len(got.Scores) != len(want) {
		t.Fatalf("expected %d scores, got %+v", len(want), got.Scores)
	}
	for i := range want {
		if got.Scores[i] != want[i] {
			t.Errorf("score %d: expected %+v, got %+v", i, want[i], got.Scores[i])
		}
	}
}

func TestAPILeaderboardBadLimit(t *testing.T) {
	srv := newServer(t, openTestDB(t))

	if rec := get(srv, "/api/leaderboard?limit=-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAPIThing(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "apples++", "apples++", "pears--")
	srv := newServer(t, db)

	rec := get(srv, "/api/things/apples")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got thingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.Thing != "apples" || got.Value != 2 {
		t.Errorf("expected apples=2, got %s=%d", got.Thing, got.Value)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].ID != "m1" {
		t.Errorf("expected newest message first, got %s", got.Messages[0].ID)
	}
	for _, m := range got.Messages {
		if m.Effect != 1 {
			t.Errorf("expected effect 1, got %d", m.Effect)
		}
	}
}

func TestAPIThingNotFound(t *testing.T) {
	srv := newServer(t, openTestDB(t))

	if rec := get(srv, "/api/things/ghost"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	srv := newServer(t, openTestDB(t))

	if rec := get(srv, "/static/style.css"); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestIndexRouteShowsThingNamesLiteral(t *testing.T) {
	db := openTestDB(t)
	seed(t, db, "__init__++", "`go`++")
	srv := newServer(t, db)

	body := get(srv, "/").Body.String()
	for _, want := range []string{"<td>__init__</td>", "<td>`go`</td>"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
	if strings.Contains(body, "<strong>init</strong>") {
		t.Error("thing name was rendered as Markdown")
	}
}
