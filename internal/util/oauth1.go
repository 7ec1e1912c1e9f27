package util

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OAuth1Signer produces OAuth 1.0a HMAC-SHA1 Authorization headers
// (RFC 5849) for user-context Twitter API requests.
type OAuth1Signer struct {
	ConsumerKey    string
	ConsumerSecret string

	// Overridable for deterministic tests.
	Nonce func() string
	Clock func() time.Time
}

func (s *OAuth1Signer) nonce() string {
	if s.Nonce != nil {
		return s.Nonce()
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *OAuth1Signer) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// AuthorizationHeader signs a request and returns the OAuth header value.
// form holds the x-www-form-urlencoded body parameters, if any; query
// parameters are taken from rawURL itself.
func (s *OAuth1Signer) AuthorizationHeader(method, rawURL string, form url.Values, token, tokenSecret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing request url: %w", err)
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        fmt.Sprintf("%d", s.now().Unix()),
		"oauth_token":            token,
		"oauth_version":          "1.0",
	}

	// Signature base string covers oauth, query and body parameters.
	params := make([]string, 0, len(oauthParams))
	for k, v := range oauthParams {
		params = append(params, percentEncode(k)+"="+percentEncode(v))
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			params = append(params, percentEncode(k)+"="+percentEncode(v))
		}
	}
	for k, vs := range form {
		for _, v := range vs {
			params = append(params, percentEncode(k)+"="+percentEncode(v))
		}
	}
	sort.Strings(params)

	baseURL := u.Scheme + "://" + u.Host + u.Path
	base := strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(strings.Join(params, "&"))
	signingKey := percentEncode(s.ConsumerSecret) + "&" + percentEncode(tokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(base))
	oauthParams["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	keys := make([]string, 0, len(oauthParams))
	for k := range oauthParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf(`%s="%s"`, percentEncode(k), percentEncode(oauthParams[k])))
	}
	return "OAuth " + strings.Join(pairs, ", "), nil
}

// percentEncode implements the strict RFC 3986 encoding OAuth requires.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
