package extract

import (
	"errors"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	got, err := New().Extract("terms.txt", "text/plain", []byte("  Section 1.   Fees\r\n\r\n\r\n\tYou   pay monthly.\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := "Section 1. Fees\n\nYou pay monthly."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtractHTMLSkipsScripts(t *testing.T) {
	page := `<html><head><title>ignored</title><style>p{}</style></head>
<body><h1>Privacy Policy</h1><script>track()</script><p>We collect   your email.</p><ul><li>Cookies</li></ul></body></html>`
	got, err := New().Extract("policy.html", "", []byte(page))
	if err != nil {
		t.Fatal(err)
	}
	want := "Privacy Policy\nWe collect your email.\nCookies"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtractDetectsByContentType(t *testing.T) {
	got, err := New().Extract("upload", "text/markdown; charset=utf-8", []byte("# Agreement"))
	if err != nil || got != "# Agreement" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestExtractRejects(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		ctype string
		data  []byte
		want  error
	}{
		{"binary", "contract.docx", "application/octet-stream", []byte{0x50, 0x4b, 0x03, 0x04}, ErrUnsupported},
		{"invalid utf8", "a.txt", "", []byte{0xff, 0xfe, 0xfd}, ErrUnsupported},
		{"whitespace only", "a.txt", "", []byte(" \n\t "), ErrNoText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New().Extract(tt.file, tt.ctype, tt.data); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestExtractBrokenPDF(t *testing.T) {
	if _, err := New().Extract("scan.pdf", "application/pdf", []byte("%PDF-1.4 garbage")); err == nil {
		t.Fatal("expected error for corrupt pdf")
	}
}

func TestDetect(t *testing.T) {
	if detect("x.bin", "", []byte("%PDF-1.7")) != kindPDF {
		t.Fatal("pdf magic bytes not detected")
	}
	if detect("X.PDF", "text/plain", nil) != kindPDF {
		t.Fatal("extension must win over content type")
	}
}
