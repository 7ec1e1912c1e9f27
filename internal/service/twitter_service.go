package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"app/internal/config"
	"app/internal/model"
	"app/internal/util"

	"github.com/rs/zerolog"
)

// ProfileAPI wraps the third-party profile-editing API. Every failure is
// classified exactly once into the fixed taxonomy; the adapter reports and
// lets the orchestrator decide policy, so it never retries internally.
type ProfileAPI interface {
	VerifyCredentials(ctx context.Context, creds *model.Credentials) bool
	UpdateAsset(ctx context.Context, creds *model.Credentials, kind model.AssetKind, payload string) *model.APIError
	FetchCurrentAsset(ctx context.Context, creds *model.Credentials, kind model.AssetKind) (string, *model.APIError)
	ProfileImageURL(ctx context.Context, creds *model.Credentials) (string, *model.APIError)
}

type twitterService struct {
	baseURL string
	signer  *util.OAuth1Signer
	client  *http.Client
	logger  zerolog.Logger
}

func NewTwitterService(cfg *config.Config, logger zerolog.Logger) ProfileAPI {
	return &twitterService{
		baseURL: strings.TrimRight(cfg.TwitterAPIBaseURL, "/"),
		signer: &util.OAuth1Signer{
			ConsumerKey:    cfg.TwitterAPIKey,
			ConsumerSecret: cfg.TwitterAPISecret,
		},
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger.With().Str("service", "TwitterService").Logger(),
	}
}

// accountProfile is the subset of verify_credentials we care about.
type accountProfile struct {
	Name            string `json:"name"`
	ScreenName      string `json:"screen_name"`
	ProfileImageURL string `json:"profile_image_url_https"`
	BannerURL       string `json:"profile_banner_url"`
}

// twitterErrorBody is the structured error payload of the v1.1 API.
type twitterErrorBody struct {
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// classify maps a remote error payload to exactly one classification.
// The table is fixed: 88 rate limit, 89 invalid/expired token, 64
// suspended, 326 locked, 120 content rejected, everything else unknown.
func classify(statusCode int, body []byte) *model.APIError {
	var parsed twitterErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		code := parsed.Errors[0].Code
		msg := parsed.Errors[0].Message

		classification := model.ClassificationUnknown
		switch code {
		case 88:
			classification = model.ClassificationRateLimited
		case 89:
			classification = model.ClassificationInvalidToken
		case 64:
			classification = model.ClassificationAccountSuspended
		case 326:
			classification = model.ClassificationAccountLocked
		case 120:
			classification = model.ClassificationContentRejected
		}
		return &model.APIError{Classification: classification, Code: code, Message: msg}
	}

	if statusCode == http.StatusTooManyRequests {
		return &model.APIError{Classification: model.ClassificationRateLimited, Message: "http 429"}
	}
	if statusCode == http.StatusUnauthorized {
		return &model.APIError{Classification: model.ClassificationInvalidToken, Message: "http 401"}
	}
	return &model.APIError{
		Classification: model.ClassificationUnknown,
		Message:        fmt.Sprintf("http %d: %s", statusCode, strings.TrimSpace(string(body))),
	}
}

// doForm signs and sends one API call and classifies any failure.
func (s *twitterService) doForm(ctx context.Context, creds *model.Credentials, method, path string, form url.Values) ([]byte, *model.APIError) {
	fullURL := s.baseURL + path

	var body io.Reader
	if len(form) > 0 {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, &model.APIError{Classification: model.ClassificationUnknown, Message: err.Error()}
	}
	if len(form) > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	auth, err := s.signer.AuthorizationHeader(method, fullURL, form, creds.Token, creds.TokenSecret)
	if err != nil {
		return nil, &model.APIError{Classification: model.ClassificationUnknown, Message: err.Error()}
	}
	req.Header.Set("Authorization", auth)

	resp, err := s.client.Do(req)
	if err != nil {
		// Network problems are indistinguishable from provider outages.
		return nil, &model.APIError{Classification: model.ClassificationUnknown, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.APIError{Classification: model.ClassificationUnknown, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := classify(resp.StatusCode, respBody)
		s.logger.Error().
			Int("status_code", resp.StatusCode).
			Str("classification", string(apiErr.Classification)).
			Int("api_code", apiErr.Code).
			Str("path", path).
			Msg("Twitter API call failed")
		return nil, apiErr
	}
	return respBody, nil
}

func (s *twitterService) verify(ctx context.Context, creds *model.Credentials) (*accountProfile, *model.APIError) {
	body, apiErr := s.doForm(ctx, creds, http.MethodGet, "/1.1/account/verify_credentials.json", nil)
	if apiErr != nil {
		return nil, apiErr
	}
	var profile accountProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, &model.APIError{Classification: model.ClassificationUnknown, Message: err.Error()}
	}
	return &profile, nil
}

// VerifyCredentials reports whether the stored token pair is still
// accepted by the provider. Any failure makes the user re-authenticate.
func (s *twitterService) VerifyCredentials(ctx context.Context, creds *model.Credentials) bool {
	_, apiErr := s.verify(ctx, creds)
	if apiErr != nil {
		s.logger.Warn().Str("classification", string(apiErr.Classification)).Msg("Credential verification failed")
		return false
	}
	return true
}

// UpdateAsset pushes a payload for the given asset kind. The "empty"
// sentinel clears the asset, so setting and fetching round-trip.
func (s *twitterService) UpdateAsset(ctx context.Context, creds *model.Credentials, kind model.AssetKind, payload string) *model.APIError {
	var (
		path string
		form = url.Values{}
	)

	if payload == model.EmptyAsset {
		switch kind {
		case model.AssetKindBanner:
			path = "/1.1/account/remove_profile_banner.json"
		default:
			// Twitter has no removal endpoint for profile images or
			// names; an "empty" restore leaves the current value.
			s.logger.Info().Str("kind", string(kind)).Msg("Empty sentinel for kind without a clear endpoint; nothing to push")
			return nil
		}
	} else {
		switch kind {
		case model.AssetKindBanner:
			path = "/1.1/account/update_profile_banner.json"
			form.Set("banner", payload)
		case model.AssetKindProfileImage:
			path = "/1.1/account/update_profile_image.json"
			form.Set("image", payload)
		case model.AssetKindName:
			path = "/1.1/account/update_profile.json"
			form.Set("name", payload)
		default:
			return &model.APIError{Classification: model.ClassificationUnknown, Message: fmt.Sprintf("unsupported asset kind %q", kind)}
		}
	}

	if _, apiErr := s.doForm(ctx, creds, http.MethodPost, path, form); apiErr != nil {
		return apiErr
	}

	s.logger.Info().Str("kind", string(kind)).Msg("Successfully updated profile asset")
	return nil
}

// FetchCurrentAsset returns the user's current asset as a pushable
// payload: base64 image data for banner and profile image, the display
// name for name, or "empty" when the user has no such asset.
func (s *twitterService) FetchCurrentAsset(ctx context.Context, creds *model.Credentials, kind model.AssetKind) (string, *model.APIError) {
	profile, apiErr := s.verify(ctx, creds)
	if apiErr != nil {
		return "", apiErr
	}

	switch kind {
	case model.AssetKindName:
		if profile.Name == "" {
			return model.EmptyAsset, nil
		}
		return profile.Name, nil
	case model.AssetKindBanner:
		if profile.BannerURL == "" {
			return model.EmptyAsset, nil
		}
		return s.fetchImageBase64(ctx, profile.BannerURL)
	case model.AssetKindProfileImage:
		if profile.ProfileImageURL == "" {
			return model.EmptyAsset, nil
		}
		return s.fetchImageBase64(ctx, originalSizeURL(profile.ProfileImageURL))
	}
	return "", &model.APIError{Classification: model.ClassificationUnknown, Message: fmt.Sprintf("unsupported asset kind %q", kind)}
}

// ProfileImageURL returns the full-size profile image URL for use as a
// live render property. Fetched fresh every time it is needed.
func (s *twitterService) ProfileImageURL(ctx context.Context, creds *model.Credentials) (string, *model.APIError) {
	profile, apiErr := s.verify(ctx, creds)
	if apiErr != nil {
		return "", apiErr
	}
	if profile.ProfileImageURL == "" {
		return model.EmptyAsset, nil
	}
	return originalSizeURL(profile.ProfileImageURL), nil
}

// originalSizeURL strips the "_normal" suffix Twitter adds to thumbnail
// profile image URLs.
func originalSizeURL(imageURL string) string {
	return strings.Replace(imageURL, "_normal", "", 1)
}

// fetchImageBase64 downloads an image URL and base64-encodes it.
func (s *twitterService) fetchImageBase64(ctx context.Context, imageURL string) (string, *model.APIError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", &model.APIError{Classification: model.ClassificationUnknown, Message: err.Error()}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", &model.APIError{Classification: model.ClassificationUnknown, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &model.APIError{Classification: model.ClassificationUnknown, Message: fmt.Sprintf("image fetch returned status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &model.APIError{Classification: model.ClassificationUnknown, Message: err.Error()}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
