package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/summit-offroad/api/internal/services"
)

func trackRouter(svc services.OffersService) chi.Router {
	r := chi.NewRouter()
	r.Route("/track", NewTrackHandlers(svc).Routes)
	return r
}

func TestPostViewsAccepted(t *testing.T) {
	svc := &fakeOffersService{track: services.TrackViewsResult{Success: true, Message: "queued 2 product views"}}
	router := trackRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/track/views", strings.NewReader(`{"productIds":["sx-1010","sx-2010"],"sessionId":"sess-9"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if svc.trackSession != "sess-9" || len(svc.trackIDs) != 2 {
		t.Fatalf("command not populated: session=%q ids=%v", svc.trackSession, svc.trackIDs)
	}
}

func TestPostViewsRejectsEmptyList(t *testing.T) {
	router := trackRouter(&fakeOffersService{})

	req := httptest.NewRequest(http.MethodPost, "/track/views", strings.NewReader(`{"productIds":[]}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
