package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"app/internal/config"
	"app/internal/model"

	"github.com/rs/zerolog"
)

func testTwitterService(t *testing.T, handler http.Handler) (ProfileAPI, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		TwitterAPIBaseURL: srv.URL,
		TwitterAPIKey:     "consumer-key",
		TwitterAPISecret:  "consumer-secret",
	}
	return NewTwitterService(cfg, zerolog.Nop()), srv
}

func testCreds() *model.Credentials {
	return &model.Credentials{Token: "token", TokenSecret: "token-secret"}
}

func apiErrorBody(code int, message string) string {
	return fmt.Sprintf(`{"errors":[{"code":%d,"message":"%s"}]}`, code, message)
}

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		body       string
		want       model.FailureClassification
		retryable  bool
		permanent  bool
	}{
		{"rate limit", 429, apiErrorBody(88, "Rate limit exceeded"), model.ClassificationRateLimited, true, false},
		{"invalid token", 401, apiErrorBody(89, "Invalid or expired token"), model.ClassificationInvalidToken, false, true},
		{"suspended", 403, apiErrorBody(64, "Your account is suspended"), model.ClassificationAccountSuspended, false, true},
		{"locked", 403, apiErrorBody(326, "To protect our users from spam..."), model.ClassificationAccountLocked, false, true},
		{"content rejected", 403, apiErrorBody(120, "Name is too long"), model.ClassificationContentRejected, false, false},
		{"unknown api code", 403, apiErrorBody(999, "mystery"), model.ClassificationUnknown, true, false},
		{"bare 429", 429, "slow down", model.ClassificationRateLimited, true, false},
		{"bare 401", 401, "nope", model.ClassificationInvalidToken, false, true},
		{"bare 500", 500, "oops", model.ClassificationUnknown, true, false},
	}

	for _, tc := range cases {
		apiErr := classify(tc.statusCode, []byte(tc.body))
		if apiErr.Classification != tc.want {
			t.Errorf("%s: classification = %s, want %s", tc.name, apiErr.Classification, tc.want)
		}
		if apiErr.Classification.Retryable() != tc.retryable {
			t.Errorf("%s: Retryable = %v, want %v", tc.name, apiErr.Classification.Retryable(), tc.retryable)
		}
		if apiErr.Classification.PermanentAuth() != tc.permanent {
			t.Errorf("%s: PermanentAuth = %v, want %v", tc.name, apiErr.Classification.PermanentAuth(), tc.permanent)
		}
	}
}

func TestUpdateAssetEmptyBannerHitsRemoveEndpoint(t *testing.T) {
	var gotPath string
	svc, _ := testTwitterService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	if apiErr := svc.UpdateAsset(context.Background(), testCreds(), model.AssetKindBanner, model.EmptyAsset); apiErr != nil {
		t.Fatalf("UpdateAsset returned error: %v", apiErr)
	}
	if gotPath != "/1.1/account/remove_profile_banner.json" {
		t.Fatalf("empty banner payload hit %s, want the remove endpoint", gotPath)
	}
}

func TestUpdateAssetEmptyProfileImageIsNoop(t *testing.T) {
	calls := 0
	svc, _ := testTwitterService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))

	if apiErr := svc.UpdateAsset(context.Background(), testCreds(), model.AssetKindProfileImage, model.EmptyAsset); apiErr != nil {
		t.Fatalf("UpdateAsset returned error: %v", apiErr)
	}
	if calls != 0 {
		t.Fatalf("empty profile image must not issue API calls, got %d", calls)
	}
}

func TestUpdateAssetClassifiesRemoteError(t *testing.T) {
	svc, _ := testTwitterService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, apiErrorBody(88, "Rate limit exceeded"))
	}))

	apiErr := svc.UpdateAsset(context.Background(), testCreds(), model.AssetKindName, "LiveName")
	if apiErr == nil {
		t.Fatal("expected a classified error")
	}
	if apiErr.Classification != model.ClassificationRateLimited || apiErr.Code != 88 {
		t.Fatalf("got classification %s code %d, want rate_limited/88", apiErr.Classification, apiErr.Code)
	}
}

func TestFetchCurrentAssetRoundTrip(t *testing.T) {
	imageBytes := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3}

	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/1.1/account/verify_credentials.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"name":               "Streamer",
			"profile_banner_url": serverURL + "/banner.png",
		})
	})
	mux.HandleFunc("/banner.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(imageBytes)
	})
	svc, srv := testTwitterService(t, mux)
	serverURL = srv.URL

	got, apiErr := svc.FetchCurrentAsset(context.Background(), testCreds(), model.AssetKindBanner)
	if apiErr != nil {
		t.Fatalf("FetchCurrentAsset returned error: %v", apiErr)
	}
	decoded, err := base64.StdEncoding.DecodeString(got)
	if err != nil {
		t.Fatalf("artifact is not valid base64: %v", err)
	}
	if string(decoded) != string(imageBytes) {
		t.Fatal("fetched artifact is not byte-equivalent to the remote image")
	}
}

func TestFetchCurrentAssetEmptyWhenNoBanner(t *testing.T) {
	svc, _ := testTwitterService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"name": "Streamer"})
	}))

	got, apiErr := svc.FetchCurrentAsset(context.Background(), testCreds(), model.AssetKindBanner)
	if apiErr != nil {
		t.Fatalf("FetchCurrentAsset returned error: %v", apiErr)
	}
	if got != model.EmptyAsset {
		t.Fatalf("got %q, want the empty sentinel", got)
	}
}

func TestVerifyCredentials(t *testing.T) {
	svc, _ := testTwitterService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Error("request missing OAuth authorization header")
		}
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, apiErrorBody(89, "Invalid or expired token"))
	}))

	if svc.VerifyCredentials(context.Background(), testCreds()) {
		t.Fatal("expected verification to fail on 401")
	}
}
