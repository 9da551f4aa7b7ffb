// Package sysinfo collects a best-effort snapshot of the host the bot runs on.
// Every section is optional: a probe that fails leaves its section empty.
package sysinfo

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
)

// DefaultPublicIPEndpoints answer with the caller's address as plain text.
var DefaultPublicIPEndpoints = []string{
	"https://api.ipify.org",
	"https://ifconfig.me/ip",
	"https://ipv4.icanhazip.com",
	"https://checkip.amazonaws.com",
}

type Info struct {
	Timestamp time.Time
	Hostname  string
	OS        OSInfo
	Runtime   RuntimeInfo
	CPU       CPUInfo
	Memory    *MemoryInfo
	Disk      DiskInfo
	Network   NetworkInfo
	PublicIP  string
}

type OSInfo struct {
	System          string
	Platform        string
	PlatformVersion string
	Kernel          string
	Arch            string
	Uptime          time.Duration
}

type RuntimeInfo struct {
	Version    string
	Goroutines int
}

type CPUInfo struct {
	LogicalCores  int
	PhysicalCores int
	Model         string
	FreqMHz       float64
	// Load holds the 1, 5 and 15 minute load averages; nil where unsupported.
	Load        *[3]float64
	UsagePerCPU []float64
}

type MemoryInfo struct {
	Total       uint64
	Available   uint64
	Used        uint64
	Percent     float64
	SwapTotal   uint64
	SwapUsed    uint64
	SwapPercent float64
}

type Usage struct {
	Total   uint64
	Used    uint64
	Free    uint64
	Percent float64
}

type Mount struct {
	Device     string
	Mountpoint string
	Fstype     string
	Usage      *Usage
}

type DiskInfo struct {
	Root   *Usage
	Mounts []Mount
}

type Interface struct {
	Name  string
	Addrs []string
}

type NetworkInfo struct {
	Primary    string
	Interfaces []Interface
}

// Collector gathers Info. The zero value skips the public IP lookup.
type Collector struct {
	LookupPublicIP    bool
	PublicIPEndpoints []string
	HTTPClient        *http.Client
	CPUSampleInterval time.Duration
}

func NewCollector(lookupPublicIP bool) *Collector {
	return &Collector{
		LookupPublicIP:    lookupPublicIP,
		PublicIPEndpoints: DefaultPublicIPEndpoints,
		HTTPClient:        &http.Client{Timeout: 2500 * time.Millisecond},
		CPUSampleInterval: 200 * time.Millisecond,
	}
}

// Collect never fails as a whole; it returns whatever the probes produced.
func (c *Collector) Collect(ctx context.Context) *Info {
	info := &Info{
		Timestamp: time.Now(),
		Runtime: RuntimeInfo{
			Version:    runtime.Version(),
			Goroutines: runtime.NumGoroutine(),
		},
		OS: OSInfo{System: runtime.GOOS, Arch: runtime.GOARCH},
	}
	info.Hostname, _ = os.Hostname()

	if h, err := host.InfoWithContext(ctx); err == nil {
		if info.Hostname == "" {
			info.Hostname = h.Hostname
		}
		info.OS.Platform = h.Platform
		info.OS.PlatformVersion = h.PlatformVersion
		info.OS.Kernel = h.KernelVersion
		info.OS.Uptime = time.Duration(h.Uptime) * time.Second
	}

	info.CPU = c.cpu(ctx)
	info.Memory = memory(ctx)
	info.Disk = disks(ctx)
	info.Network = network(ctx)

	if c.LookupPublicIP {
		info.PublicIP = c.publicIP(ctx)
	}
	return info
}

func (c *Collector) cpu(ctx context.Context) CPUInfo {
	out := CPUInfo{LogicalCores: runtime.NumCPU()}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		out.PhysicalCores = n
	}
	if stats, err := cpu.InfoWithContext(ctx); err == nil && len(stats) > 0 {
		out.Model = stats[0].ModelName
		out.FreqMHz = stats[0].Mhz
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		out.Load = &[3]float64{avg.Load1, avg.Load5, avg.Load15}
	}
	if c.CPUSampleInterval > 0 {
		if usage, err := cpu.PercentWithContext(ctx, c.CPUSampleInterval, true); err == nil {
			out.UsagePerCPU = usage
		}
	}
	return out
}

func memory(ctx context.Context) *MemoryInfo {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil
	}
	out := &MemoryInfo{
		Total:     vm.Total,
		Available: vm.Available,
		Used:      vm.Used,
		Percent:   vm.UsedPercent,
	}
	if sm, err := mem.SwapMemoryWithContext(ctx); err == nil {
		out.SwapTotal = sm.Total
		out.SwapUsed = sm.Used
		out.SwapPercent = sm.UsedPercent
	}
	return out
}

func usage(ctx context.Context, path string) *Usage {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil
	}
	return &Usage{Total: u.Total, Used: u.Used, Free: u.Free, Percent: u.UsedPercent}
}

func disks(ctx context.Context) DiskInfo {
	out := DiskInfo{Root: usage(ctx, "/")}
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return out
	}
	for _, p := range parts {
		out.Mounts = append(out.Mounts, Mount{
			Device:     p.Device,
			Mountpoint: p.Mountpoint,
			Fstype:     p.Fstype,
			Usage:      usage(ctx, p.Mountpoint),
		})
	}
	return out
}

func network(ctx context.Context) NetworkInfo {
	out := NetworkInfo{Primary: primaryIP()}
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return out
	}
	for _, iface := range ifaces {
		var addrs []string
		for _, a := range iface.Addrs {
			addr := a.Addr
			if i := strings.IndexByte(addr, '/'); i >= 0 {
				addr = addr[:i]
			}
			addrs = append(addrs, addr)
		}
		if len(addrs) > 0 {
			out.Interfaces = append(out.Interfaces, Interface{Name: iface.Name, Addrs: addrs})
		}
	}
	return out
}

// primaryIP is the local address of the interface that routes to the internet.
// Dialing UDP sends no packets.
func primaryIP() string {
	conn, err := net.DialTimeout("udp", "8.8.8.8:80", 500*time.Millisecond)
	if err != nil {
		return ""
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}

func (c *Collector) publicIP(ctx context.Context) string {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	for _, url := range c.PublicIPEndpoints {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}
		if ip := strings.TrimSpace(string(body)); ip != "" {
			return ip
		}
	}
	return ""
}
