package homeassistant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const stateBody = `{
	"entity_id": "sensor.growatt_battery_level",
	"state": "87.5",
	"attributes": {"unit_of_measurement": "%", "friendly_name": "Battery"},
	"last_changed": "2025-06-01T10:00:00+00:00",
	"last_updated": "2025-06-01T10:04:30+00:00"
}`

func newTestClient(url string) *Client {
	return NewClient(url, "test-token", "sensor.growatt_battery_level", 5*time.Second)
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states/sensor.growatt_battery_level" {
			t.Errorf("path = %q, want /api/states/sensor.growatt_battery_level", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Write([]byte(stateBody))
	}))
	defer srv.Close()

	reading, err := newTestClient(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reading.Value != 87.5 {
		t.Errorf("Value = %g, want 87.5", reading.Value)
	}
	if reading.Unit != "%" {
		t.Errorf("Unit = %q, want %%", reading.Unit)
	}
	if reading.EntityID != "sensor.growatt_battery_level" {
		t.Errorf("EntityID = %q, want entity id", reading.EntityID)
	}
	want := time.Date(2025, 6, 1, 10, 4, 30, 0, time.UTC)
	if !reading.ObservedAt.Equal(want) {
		t.Errorf("ObservedAt = %v, want %v", reading.ObservedAt, want)
	}
}

func TestFetch_ObservedAtFallsBackToNow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entity_id": "sensor.growatt_battery_level", "state": "50"}`))
	}))
	defer srv.Close()

	reading, err := newTestClient(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reading.ObservedAt.IsZero() {
		t.Error("ObservedAt should fall back to now, got zero")
	}
	if time.Since(reading.ObservedAt) > 5*time.Second {
		t.Errorf("ObservedAt = %v, want roughly now", reading.ObservedAt)
	}
}

func TestFetch_AuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if got := KindOf(err); got != KindAuth {
		t.Errorf("KindOf = %q, want %q", got, KindAuth)
	}
	if Retryable(err) {
		t.Error("auth errors must not be retryable")
	}
}

func TestFetch_Forbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background())
	if got := KindOf(err); got != KindAuth {
		t.Errorf("KindOf = %q, want %q", got, KindAuth)
	}
}

func TestFetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if got := KindOf(err); got != KindNotFound {
		t.Errorf("KindOf = %q, want %q", got, KindNotFound)
	}
	if Retryable(err) {
		t.Error("unknown-entity errors must not be retryable")
	}
	if !strings.Contains(err.Error(), "sensor.growatt_battery_level") {
		t.Errorf("error = %q, want mention of the entity id", err)
	}
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background())
	if got := KindOf(err); got != KindNetwork {
		t.Errorf("KindOf = %q, want %q", got, KindNetwork)
	}
	if !Retryable(err) {
		t.Error("server errors should be retryable")
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok", "sensor.test", 20*time.Millisecond)
	_, err := client.Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for slow server")
	}
	if got := KindOf(err); got != KindTimeout {
		t.Errorf("KindOf = %q, want %q", got, KindTimeout)
	}
	if !Retryable(err) {
		t.Error("timeouts should be retryable")
	}
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for refused connection")
	}
	if got := KindOf(err); got != KindNetwork {
		t.Errorf("KindOf = %q, want %q", got, KindNetwork)
	}
}

func TestFetch_NonNumericState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"entity_id": "sensor.test", "state": "unavailable"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background())
	if err == nil {
		t.Fatal("expected error for non-numeric state")
	}
	if got := KindOf(err); got != KindParse {
		t.Errorf("KindOf = %q, want %q", got, KindParse)
	}
	if !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("error = %q, want mention of the state value", err)
	}
}

func TestFetch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Fetch(context.Background())
	if got := KindOf(err); got != KindParse {
		t.Errorf("KindOf = %q, want %q", got, KindParse)
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindNetwork {
		t.Errorf("KindOf = %q, want %q for non-FetchError", got, KindNetwork)
	}
}

func TestRetryable_PerKind(t *testing.T) {
	cases := []struct {
		kind FailureKind
		want bool
	}{
		{KindTimeout, true},
		{KindNetwork, true},
		{KindParse, true},
		{KindAuth, false},
		{KindNotFound, false},
	}
	for _, tc := range cases {
		err := &FetchError{Kind: tc.kind, Message: "x"}
		if got := Retryable(err); got != tc.want {
			t.Errorf("Retryable(%s) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}
