package security

import (
	"net/http"
	"testing"
	"time"
)

// TestFetchGuard_ClientTimeout はタイムアウト設定が反映されることを検証する。
func TestFetchGuard_ClientTimeout(t *testing.T) {
	g := NewFetchGuard(7 * time.Second)
	client := g.Client()
	if client == nil {
		t.Fatal("Client() returned nil")
	}
	if client.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v, want %v", client.Timeout, 7*time.Second)
	}
}

// TestFetchGuard_ClientHasCustomTransport はsafeurlのTransportが設定されていることを検証する。
func TestFetchGuard_ClientHasCustomTransport(t *testing.T) {
	client := NewFetchGuard(time.Second).Client()
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Fatal("expected safeurl transport, got default")
	}
}

// TestFetchGuard_ValidateURL は静的なURL検証を検証する。
func TestFetchGuard_ValidateURL(t *testing.T) {
	g := NewFetchGuard(time.Second)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https公開ホスト", url: "https://www.ntv.com.tr/gundem.rss", wantErr: false},
		{name: "http公開ホスト", url: "http://feeds.bbci.co.uk/turkce/rss.xml", wantErr: false},
		{name: "公開IP", url: "https://93.184.216.34/rss", wantErr: false},
		{name: "空文字列", url: "", wantErr: true},
		{name: "ftpスキーム", url: "ftp://example.com/rss", wantErr: true},
		{name: "fileスキーム", url: "file:///etc/passwd", wantErr: true},
		{name: "ホスト無し", url: "https:///rss", wantErr: true},
		{name: "localhost", url: "http://localhost:8080/rss", wantErr: true},
		{name: "localhostサブドメイン", url: "http://api.localhost/rss", wantErr: true},
		{name: "ループバック", url: "http://127.0.0.1/rss", wantErr: true},
		{name: "プライベート10", url: "http://10.0.0.5/rss", wantErr: true},
		{name: "プライベート192", url: "http://192.168.1.1/rss", wantErr: true},
		{name: "メタデータIP", url: "http://169.254.169.254/latest/meta-data", wantErr: true},
		{name: "CGNAT", url: "http://100.64.1.1/rss", wantErr: true},
		{name: "IPv6ループバック", url: "http://[::1]/rss", wantErr: true},
		{name: "IPv6ユニークローカル", url: "http://[fd00::1]/rss", wantErr: true},
		{name: "未指定アドレス", url: "http://0.0.0.0/rss", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
