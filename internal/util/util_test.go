package util

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"app/internal/model"
)

func TestValidArtifactEmptySentinel(t *testing.T) {
	for _, kind := range model.AllAssetKinds() {
		if !ValidArtifact(kind, model.EmptyAsset) {
			t.Fatalf("empty sentinel should be valid for kind %s", kind)
		}
	}
}

func TestValidArtifactImages(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    bool
	}{
		{"blank", "", false},
		{"not base64", "!!!not-base64!!!", false},
		{"valid base64", "aGVsbG8gd29ybGQ=", true},
		{"data uri prefix", "data:image/png;base64,aGVsbG8=", true},
		{"decodes to nothing", "", false},
	}
	for _, tc := range cases {
		if got := ValidArtifact(model.AssetKindBanner, tc.payload); got != tc.want {
			t.Errorf("%s: ValidArtifact = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestValidArtifactName(t *testing.T) {
	if !ValidArtifact(model.AssetKindName, "StreamerName") {
		t.Fatal("plain name should be valid")
	}
	long := make([]byte, 51)
	for i := range long {
		long[i] = 'a'
	}
	if ValidArtifact(model.AssetKindName, string(long)) {
		t.Fatal("names over 50 characters should be invalid")
	}
}

// Known-answer test from the Twitter "creating a signature" documentation.
func TestOAuth1SignerKnownVector(t *testing.T) {
	signer := &OAuth1Signer{
		ConsumerKey:    "xvz1evFS4wEEPTGEFPHBog",
		ConsumerSecret: "kAcSOqF21Fu85e7zjz7ZN2U4ZRhfV3WpwPAoE3Z7kBw",
		Nonce:          func() string { return "kYjzVBB8Y0ZFabxSWbWovY3uYSQ2pTgmZeNu2VS4cg" },
		Clock:          func() time.Time { return time.Unix(1318622958, 0) },
	}

	form := url.Values{}
	form.Set("status", "Hello Ladies + Gentlemen, a signed OAuth request!")

	header, err := signer.AuthorizationHeader(
		"POST",
		"https://api.twitter.com/1.1/statuses/update.json?include_entities=true",
		form,
		"370773112-GmHxMAgYyLbNEtIKZeRNFsMKPR9EyMZeS9weJAEb",
		"LswwdoUaIvS8ltyTt5jkRh4J50vUPVVHtR2YPi5kE",
	)
	if err != nil {
		t.Fatalf("AuthorizationHeader returned error: %v", err)
	}

	wantSig := `oauth_signature="tnnArxj06cWHq44gCs1OSKk%2FjLY%3D"`
	if !strings.Contains(header, wantSig) {
		t.Fatalf("header missing expected signature\n got: %s\nwant fragment: %s", header, wantSig)
	}
}

func TestPercentEncode(t *testing.T) {
	if got := percentEncode("Ladies + Gentlemen"); got != "Ladies%20%2B%20Gentlemen" {
		t.Fatalf("percentEncode = %q", got)
	}
	if got := percentEncode("safe-._~chars"); got != "safe-._~chars" {
		t.Fatalf("unreserved characters must pass through, got %q", got)
	}
}
