package webhook

import "testing"

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(
		NewRetellAdapter("s1"),
		NewVapiAdapter("s2"),
		NewLiveKitAdapter("t", ""),
	)

	for _, tag := range []string{"retell", "RETELL", " vapi ", "livekit"} {
		if _, ok := reg.Lookup(tag); !ok {
			t.Fatalf("Lookup(%q) = false, want true", tag)
		}
	}
	if _, ok := reg.Lookup("twilio"); ok {
		t.Fatalf("expected unknown provider miss")
	}
}

func TestNormalizeRecordingURL(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		bucket string
		want   string
	}{
		{"empty", "", "", ""},
		{"https passthrough", "https://cdn.example.com/rec.mp4", "", "https://cdn.example.com/rec.mp4"},
		{"s3 uri", "s3://recordings/calls/abc.ogg", "", "https://recordings.s3.amazonaws.com/calls/abc.ogg"},
		{"s3 uri ignores default bucket", "s3://other/abc.ogg", "recordings", "https://other.s3.amazonaws.com/abc.ogg"},
		{"bare key with default bucket", "calls/abc.ogg", "recordings", "https://recordings.s3.amazonaws.com/calls/abc.ogg"},
		{"bare key without bucket", "calls/abc.ogg", "", "calls/abc.ogg"},
		{"s3 uri missing key", "s3://recordings", "", "s3://recordings"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeRecordingURL(tc.raw, tc.bucket); got != tc.want {
				t.Fatalf("normalizeRecordingURL(%q, %q) = %q, want %q", tc.raw, tc.bucket, got, tc.want)
			}
		})
	}
}
