package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in           string
		wantEndpoint string
		wantSecure   bool
		wantErr      bool
	}{
		{"minio:9000", "minio:9000", false, false},
		{"http://minio:9000", "minio:9000", false, false},
		{"https://minio:9000", "minio:9000", true, false},
		{"http://minio:9000/", "minio:9000", false, false},
		{"http://minio:9000/foo", "", false, true},
		{"", "", false, true},
	}

	for _, tt := range tests {
		ep, secure, err := normaliseEndpoint(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for input %q", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if ep != tt.wantEndpoint || secure != tt.wantSecure {
			t.Fatalf("normaliseEndpoint(%q) = (%q,%v), want (%q,%v)", tt.in, ep, secure, tt.wantEndpoint, tt.wantSecure)
		}
	}
}

func TestNewMinioBlob_IncompleteConfig(t *testing.T) {
	if _, err := NewMinioBlob(context.Background(), MinioConfig{Endpoint: "minio:9000"}); err == nil {
		t.Fatal("expected error for incomplete configuration")
	}
}

func TestMinioBlob_ObjectKey(t *testing.T) {
	b := &MinioBlob{prefix: "uploads/"}
	if got := b.objectKey("2024-03-07/x.png"); got != "uploads/2024-03-07/x.png" {
		t.Fatalf("objectKey = %q", got)
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	if !isPreconditionFailed(minio.ErrorResponse{Code: "PreconditionFailed", StatusCode: 412}) {
		t.Fatal("412 PreconditionFailed must map to an existing object")
	}
	if isPreconditionFailed(minio.ErrorResponse{Code: "NoSuchKey"}) {
		t.Fatal("NoSuchKey is not a precondition failure")
	}
	if isPreconditionFailed(errors.New("connection refused")) {
		t.Fatal("plain errors are not precondition failures")
	}
}
