package source

import "testing"

func TestDeriveLFSURL(t *testing.T) {
	var testCases = []struct {
		name     string
		url      string
		expected string
	}{
		{name: "dot-git suffix", url: "https://example.com/acme/repo.git", expected: "https://example.com/acme/repo.git/info/lfs"},
		{name: "no suffix", url: "https://example.com/acme/repo", expected: "https://example.com/acme/repo.git/info/lfs"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if actual := DeriveLFSURL(tc.url); actual != tc.expected {
				t.Errorf("expected %q, got %q", tc.expected, actual)
			}
		})
	}
}
