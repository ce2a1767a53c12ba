package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mfenderov/docindex/pkg/models"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty endpoint",
			config:  Config{Endpoint: "", Bucket: "test"},
			wantErr: true,
		},
		{
			name:    "empty bucket",
			config:  Config{Endpoint: "localhost:9000", Bucket: ""},
			wantErr: true,
		},
		{
			name: "valid config",
			config: Config{
				Endpoint:        "localhost:9000",
				Bucket:          "test",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestObjectNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"image", imageObjectName("doc-1", "doc-1_img_2", "png"), "documents/doc-1/images/doc-1_img_2.png"},
		{"image ext with dot", imageObjectName("doc-1", "doc-1_img_1", ".JPEG"), "documents/doc-1/images/doc-1_img_1.jpeg"},
		{"image without ext", imageObjectName("doc-1", "doc-1_img_1", ""), "documents/doc-1/images/doc-1_img_1.bin"},
		{"record", recordObjectName("doc-1"), "documents/doc-1/record.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"png", "image/png"},
		{".jpg", "image/jpeg"},
		{"unknown-ext", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := contentType(tt.ext); got != tt.want {
				t.Errorf("contentType(%q) = %q, want %q", tt.ext, got, tt.want)
			}
		})
	}
}

func TestSplitImageName(t *testing.T) {
	tests := []struct {
		name, wantID, wantExt string
	}{
		{"doc-1_img_2.png", "doc-1_img_2", "png"},
		{"img_1.jpeg", "img_1", "jpeg"},
		{"img_1.bin", "img_1", "bin"},
		{"noext", "noext", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ext := splitImageName(tt.name)
			if id != tt.wantID || ext != tt.wantExt {
				t.Errorf("splitImageName(%q) = (%q, %q), want (%q, %q)", tt.name, id, ext, tt.wantID, tt.wantExt)
			}
			if ext != "" && imageFileName(id, ext) != tt.name {
				t.Errorf("imageFileName(%q, %q) = %q, want %q", id, ext, imageFileName(id, ext), tt.name)
			}
		})
	}
}

func TestLocalStore_PutImage(t *testing.T) {
	root := filepath.Join(t.TempDir(), "images")
	store, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	data := []byte{0x89, 'P', 'N', 'G'}
	p, err := store.PutImage(context.Background(), "doc-1", "doc-1_img_1", "png", data)
	if err != nil {
		t.Fatalf("PutImage() error = %v", err)
	}

	want := filepath.Join(root, "doc-1", "doc-1_img_1.png")
	if p != want {
		t.Errorf("PutImage() path = %q, want %q", p, want)
	}

	got, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("stored bytes = %v, want %v", got, data)
	}
}

func TestLocalStore_CancelledContext(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.PutImage(ctx, "doc-1", "img", "png", []byte("x")); err == nil {
		t.Error("PutImage() expected error for cancelled context")
	}
}

func TestNewLocal_RequiresDirectory(t *testing.T) {
	if _, err := NewLocal(""); err == nil {
		t.Error("NewLocal(\"\") expected error")
	}
}

// TestIntegration_S3Operations tests actual S3 operations against MinIO.
// Skip if MinIO is not running.
func TestIntegration_S3Operations(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	client, err := New(Config{
		Endpoint:        endpoint,
		Bucket:          "docindex-test",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		UseSSL:          false,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()

	// Try to ensure bucket - skip if MinIO is not available
	if err := client.EnsureBucket(ctx); err != nil {
		t.Skipf("MinIO not available, skipping integration test: %v", err)
	}

	docID := "0190f3a2-test-doc"
	imageData := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

	t.Run("PutImage", func(t *testing.T) {
		loc, err := client.PutImage(ctx, docID, docID+"_img_1", "png", imageData)
		if err != nil {
			t.Fatalf("PutImage() error = %v", err)
		}
		want := "s3://docindex-test/documents/" + docID + "/images/" + docID + "_img_1.png"
		if loc != want {
			t.Errorf("PutImage() = %q, want %q", loc, want)
		}
	})

	t.Run("GetImage", func(t *testing.T) {
		data, err := client.GetImage(ctx, docID, docID+"_img_1", "png")
		if err != nil {
			t.Fatalf("GetImage() error = %v", err)
		}
		if !bytes.Equal(data, imageData) {
			t.Errorf("GetImage() = %v, want %v", data, imageData)
		}
	})

	t.Run("ListImages", func(t *testing.T) {
		files, err := client.ListImages(ctx, docID)
		if err != nil {
			t.Fatalf("ListImages() error = %v", err)
		}
		if len(files) != 1 || files[0] != docID+"_img_1.png" {
			t.Errorf("ListImages() = %v, want [%s_img_1.png]", files, docID)
		}
	})

	t.Run("DownloadImages", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "out")
		paths, err := client.DownloadImages(ctx, docID, dir)
		if err != nil {
			t.Fatalf("DownloadImages() error = %v", err)
		}
		want := filepath.Join(dir, docID+"_img_1.png")
		if len(paths) != 1 || paths[0] != want {
			t.Fatalf("DownloadImages() = %v, want [%s]", paths, want)
		}
		got, err := os.ReadFile(want)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if !bytes.Equal(got, imageData) {
			t.Errorf("downloaded bytes = %v, want %v", got, imageData)
		}
	})

	t.Run("PutRecord", func(t *testing.T) {
		doc := models.Document{DocumentID: docID, Title: "report", FileType: "pdf"}
		if err := client.PutRecord(ctx, doc); err != nil {
			t.Fatalf("PutRecord() error = %v", err)
		}
	})

	t.Run("GetRecord", func(t *testing.T) {
		doc, err := client.GetRecord(ctx, docID)
		if err != nil {
			t.Fatalf("GetRecord() error = %v", err)
		}
		if doc.Title != "report" {
			t.Errorf("GetRecord().Title = %q, want %q", doc.Title, "report")
		}
	})

	t.Run("ListRecords", func(t *testing.T) {
		ids, err := client.ListRecords(ctx)
		if err != nil {
			t.Fatalf("ListRecords() error = %v", err)
		}
		found := false
		for _, id := range ids {
			if id == docID {
				found = true
			}
		}
		if !found {
			t.Errorf("ListRecords() = %v, want to contain %q", ids, docID)
		}
	})
}
