package wa

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestQRDataURL(t *testing.T) {
	url, err := QRDataURL("2@pairing-code")
	if err != nil {
		t.Fatalf("QRDataURL: %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("url = %q, want %s prefix", url, prefix)
	}
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(string(png), "\x89PNG") {
		t.Error("payload is not a PNG")
	}
}

func TestParseRecipient(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"5511999999999", "5511999999999@s.whatsapp.net", false},
		{"+55 11 99999-9999", "5511999999999@s.whatsapp.net", false},
		{"123-456@g.us", "123-456@g.us", false},
		{"", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRecipient(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRecipient(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got.String() != tt.want {
			t.Errorf("ParseRecipient(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
