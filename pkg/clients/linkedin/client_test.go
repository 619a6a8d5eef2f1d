package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_Share(t *testing.T) {
	var gotPath, gotCsrf, gotCookie string
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCsrf = r.Header.Get("Csrf-Token")
		gotCookie = r.Header.Get("Cookie")
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"urn": "urn:li:share:12345"}`))
	}))
	defer server.Close()

	client := NewClient(Session{JSESSIONID: `"ajax:987"`, LiAt: "token"}, WithBaseURL(server.URL))
	urn, err := client.Share(context.Background(), "Big news in AI today.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if urn != "urn:li:share:12345" {
		t.Errorf("expected share urn, got %q", urn)
	}
	if gotPath != "/voyager/api/contentcreation/normShares" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotCsrf != "ajax:987" {
		t.Errorf("expected csrf token without quotes, got %q", gotCsrf)
	}
	if !strings.Contains(gotCookie, `JSESSIONID="ajax:987"`) || !strings.Contains(gotCookie, "li_at=token") {
		t.Errorf("unexpected cookie header: %q", gotCookie)
	}

	commentary, ok := gotPayload["commentaryV2"].(map[string]interface{})
	if !ok {
		t.Fatal("expected commentaryV2 object in payload")
	}
	if commentary["text"] != "Big news in AI today." {
		t.Errorf("unexpected commentary text: %v", commentary["text"])
	}
	if gotPayload["postState"] != "PUBLISHED" {
		t.Errorf("expected postState PUBLISHED, got %v", gotPayload["postState"])
	}
}

func TestClient_ShareValidation(t *testing.T) {
	client := NewClient(Session{JSESSIONID: "ajax:1", LiAt: "token"})

	if _, err := client.Share(context.Background(), "   "); err == nil {
		t.Error("expected error for empty content")
	}

	long := strings.Repeat("a", MaxPostLength+1)
	if _, err := client.Share(context.Background(), long); !errors.Is(err, ErrContentTooLong) {
		t.Errorf("expected ErrContentTooLong, got %v", err)
	}
}

func TestClient_ShareAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("csrf check failed"))
	}))
	defer server.Close()

	client := NewClient(Session{JSESSIONID: "ajax:1", LiAt: "token"}, WithBaseURL(server.URL))
	_, err := client.Share(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for 403 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", apiErr.StatusCode)
	}
	if apiErr.Body != "csrf check failed" {
		t.Errorf("unexpected error body: %q", apiErr.Body)
	}
}

func TestClient_ShareRefreshesSession(t *testing.T) {
	calls := 0
	var secondCsrf string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Add("Set-Cookie", `JSESSIONID="ajax:rotated"; Path=/`)
			w.Header().Add("Set-Cookie", "li_at=rotated-token; Path=/")
		} else {
			secondCsrf = r.Header.Get("Csrf-Token")
		}
		_, _ = w.Write([]byte(`{"urn": "urn:li:share:1"}`))
	}))
	defer server.Close()

	client := NewClient(Session{JSESSIONID: "ajax:old", LiAt: "old-token"}, WithBaseURL(server.URL))
	if _, err := client.Share(context.Background(), "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Share(context.Background(), "second"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if secondCsrf != "ajax:rotated" {
		t.Errorf("expected rotated csrf token on second request, got %q", secondCsrf)
	}
}

func TestClient_GetSocialCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/voyager/api/feed/social/") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"numLikes": 12, "numComments": 3, "numShares": 2, "numViews": 480}`))
	}))
	defer server.Close()

	client := NewClient(Session{JSESSIONID: "ajax:1", LiAt: "token"}, WithBaseURL(server.URL))
	counts, err := client.GetSocialCounts(context.Background(), "urn:li:share:12345")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if counts.Likes != 12 || counts.Comments != 3 || counts.Shares != 2 || counts.Views != 480 {
		t.Errorf("unexpected counts: %+v", counts)
	}

	if _, err := client.GetSocialCounts(context.Background(), ""); err == nil {
		t.Error("expected error for empty urn")
	}
}
