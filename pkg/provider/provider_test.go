package provider

import (
	"strings"
	"testing"
)

func TestSupportsAuthHeader(t *testing.T) {
	var testCases = []struct {
		provider Type
		expected bool
	}{
		{External, false},
		{GitHub, true},
		{GitHubEnterprise, true},
		{Bitbucket, true},
		{CentralHosted, true},
		{CentralOnPrem, true},
	}
	for _, tc := range testCases {
		t.Run(tc.provider.String(), func(t *testing.T) {
			if actual := SupportsAuthHeader(tc.provider); actual != tc.expected {
				t.Errorf("expected %v, got %v", tc.expected, actual)
			}
		})
	}
}

func TestRequiresAuthHeaderOnlyOnPrem(t *testing.T) {
	for _, p := range []Type{External, GitHub, GitHubEnterprise, Bitbucket, CentralHosted} {
		if RequiresAuthHeader(p) {
			t.Errorf("expected %s not to require a cmdline auth header", p)
		}
	}
	if !RequiresAuthHeader(CentralOnPrem) {
		t.Error("expected CentralOnPrem to require a cmdline auth header")
	}
}

func TestMinimumVersion(t *testing.T) {
	if _, ok := MinimumVersion(External); ok {
		t.Error("expected External to have no minimum version")
	}
	for _, p := range []Type{GitHub, GitHubEnterprise, Bitbucket, CentralHosted, CentralOnPrem} {
		v, ok := MinimumVersion(p)
		if !ok || v != "2.9" {
			t.Errorf("%s: expected minimum version 2.9, got %q (ok=%v)", p, v, ok)
		}
	}
}

func TestGenerateAuthHeader(t *testing.T) {
	if _, ok := GenerateAuthHeader(External, "u", "p"); ok {
		t.Error("expected External to never generate an auth header")
	}

	header, ok := GenerateAuthHeader(GitHub, "x", "tok")
	if !ok {
		t.Fatal("expected GitHub to generate an auth header")
	}
	if expected := "basic eDp0b2s="; header != expected {
		t.Errorf("expected %q, got %q", expected, header)
	}

	header, ok = GenerateAuthHeader(CentralOnPrem, "", "jwt-token")
	if !ok {
		t.Fatal("expected CentralOnPrem to generate an auth header")
	}
	if expected := "bearer jwt-token"; header != expected {
		t.Errorf("expected %q, got %q", expected, header)
	}
}

func TestSupportsLfsAuthHeaderMatchesCoreSupport(t *testing.T) {
	for _, p := range []Type{External, GitHub, GitHubEnterprise, Bitbucket, CentralHosted, CentralOnPrem} {
		if SupportsLfsAuthHeader(p) != SupportsAuthHeader(p) {
			t.Errorf("%s: expected LFS auth-header support to match core support", p)
		}
	}
}

func TestParseTypeRoundTripsEveryTypeCaseInsensitively(t *testing.T) {
	for _, p := range []Type{External, GitHub, GitHubEnterprise, Bitbucket, CentralHosted, CentralOnPrem} {
		for _, name := range []string{p.String(), strings.ToUpper(p.String())} {
			actual, err := ParseType(name)
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", name, err)
			}
			if actual != p {
				t.Errorf("%s: expected %s, got %s", name, p, actual)
			}
		}
	}
}

func TestParseTypeRejectsUnrecognizedName(t *testing.T) {
	if _, err := ParseType("subversion"); err == nil {
		t.Error("expected an error for an unrecognized provider type")
	}
}
