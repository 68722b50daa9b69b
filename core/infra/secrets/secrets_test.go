package secrets

import "testing"

func TestStatus(t *testing.T) {
	t.Setenv("ACME_API_KEY", "sk-123456")
	t.Setenv("BLANK_API_KEY", "  ")
	cases := map[string]KeyStatus{
		"":              KeyUnset,
		"ACME_API_KEY":  KeyPresent,
		"BLANK_API_KEY": KeyMissing,
		"NOPE_API_KEY":  KeyMissing,
	}
	for env, want := range cases {
		if got := Status(env); got != want {
			t.Fatalf("Status(%q) = %q, want %q", env, got, want)
		}
	}
}
