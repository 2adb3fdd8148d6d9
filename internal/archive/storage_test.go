package archive

import "testing"

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{"https://abc123.r2.cloudflarestorage.com", StorageTypeR2},
		{"ABC123.R2.CLOUDFLARESTORAGE.COM", StorageTypeR2},
		{"https://s3.us-west-2.amazonaws.com", StorageTypeS3},
		{"minio.internal:9000", StorageTypeS3Compatible},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			if got := detectStorageType(tt.endpoint); got != tt.want {
				t.Errorf("detectStorageType(%q) = %q, want %q", tt.endpoint, got, tt.want)
			}
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://abc.r2.cloudflarestorage.com", "abc.r2.cloudflarestorage.com"},
		{"http://minio.internal:9000/bucket", "minio.internal:9000"},
		{"minio.internal:9000/", "minio.internal:9000"},
		{"s3.amazonaws.com", "s3.amazonaws.com"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := normalizeEndpoint(tt.in); got != tt.want {
				t.Errorf("normalizeEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGetURL(t *testing.T) {
	s := &S3Storage{publicURL: "https://cdn.example.com"}
	got := s.GetURL("jobs/j1/result.json")
	want := "https://cdn.example.com/jobs/j1/result.json"
	if got != want {
		t.Errorf("GetURL = %q, want %q", got, want)
	}
}
