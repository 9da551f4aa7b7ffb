package sysinfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0.00 B"},
		{1023, "1023.00 B"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024 * 1024, "5.00 GB"},
	}
	for _, tt := range tests {
		if got := HumanBytes(tt.in); got != tt.want {
			t.Errorf("HumanBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"fits", "a\nb\n", 10, []string{"a\nb\n"}},
		{"splits on lines", "aaaa\nbbbb\ncccc\n", 10, []string{"aaaa\nbbbb\n", "cccc\n"}},
		{"long line alone", "aaaaaaaaaaaa\nb", 5, []string{"aaaaaaaaaaaa\n", "b"}},
		{"empty", "", 10, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Chunk(tt.text, tt.limit)); diff != "" {
				t.Errorf("Chunk mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	info := &Info{
		Hostname: "box<1>",
		OS:       OSInfo{System: "linux", Kernel: "6.1", Arch: "amd64", Platform: "debian", PlatformVersion: "12"},
		Runtime:  RuntimeInfo{Version: "go1.23.4", Goroutines: 7},
		CPU:      CPUInfo{LogicalCores: 8, PhysicalCores: 4, Load: &[3]float64{0.5, 0.25, 0.1}},
		Memory:   &MemoryInfo{Total: 2048, Used: 1024, Percent: 50},
		Disk: DiskInfo{
			Root:   &Usage{Total: 4096, Used: 1024, Percent: 25},
			Mounts: []Mount{{Mountpoint: "/data"}},
		},
		Network: NetworkInfo{
			Primary:    "10.0.0.2",
			Interfaces: []Interface{{Name: "eth0", Addrs: []string{"10.0.0.2", "fe80::1"}}},
		},
	}

	out := Format(info)
	for _, want := range []string{
		"<code>box&lt;1&gt;</code>",
		"<b>Логич. ядра:</b> 8",
		"0.50 / 0.25 / 0.10",
		"1.00 KB (50.00%)",
		"<b>Root /:</b> 1.00 KB / 4.00 KB (25.00%)",
		"<code>/data</code>: —",
		"<b>Public IP:</b> <code>—</code>",
		"<b>eth0</b>: <code>10.0.0.2</code>, <code>fe80::1</code>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format output missing %q:\n%s", want, out)
		}
	}
}

func TestPublicIP_FallsThroughEndpoints(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer broken.Close()
	working := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(" 203.0.113.7\n"))
	}))
	defer working.Close()

	c := &Collector{
		LookupPublicIP:    true,
		PublicIPEndpoints: []string{broken.URL, working.URL},
		HTTPClient:        working.Client(),
	}
	if got := c.publicIP(context.Background()); got != "203.0.113.7" {
		t.Errorf("publicIP = %q, want 203.0.113.7", got)
	}
}

func TestCollect_WithoutPublicIP(t *testing.T) {
	c := &Collector{}
	info := c.Collect(context.Background())
	if info.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
	if info.CPU.LogicalCores == 0 {
		t.Error("expected logical core count")
	}
	if info.PublicIP != "" {
		t.Errorf("public IP lookup should be skipped, got %q", info.PublicIP)
	}
}
