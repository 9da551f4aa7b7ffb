package sysinfo

import (
	"fmt"
	"html"
	"strings"
)

const (
	dash = "—"

	maxMounts        = 10
	maxAddrs         = 6
	maxInterfaces    = 6
	maxIfaceAddrs    = 4
	DefaultChunkSize = 3800
)

// HumanBytes formats n with binary units, e.g. 1536 -> "1.50 KB".
func HumanBytes(n uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	f := float64(n)
	i := 0
	for f >= 1024 && i < len(units)-1 {
		f /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", f, units[i])
}

func Percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func orDash(s string) string {
	if s == "" {
		return dash
	}
	return s
}

func code(s string) string {
	return "<code>" + html.EscapeString(orDash(s)) + "</code>"
}

// Format renders info as Telegram HTML.
func Format(info *Info) string {
	var b strings.Builder

	b.WriteString("🖥 <b>Система</b>\n")
	fmt.Fprintf(&b, "• <b>Хост:</b> %s\n", code(info.Hostname))
	fmt.Fprintf(&b, "• <b>OS:</b> %s %s (%s)\n", html.EscapeString(orDash(info.OS.System)), html.EscapeString(info.OS.Kernel), html.EscapeString(info.OS.Arch))
	fmt.Fprintf(&b, "• <b>Платформа:</b> %s\n", code(strings.TrimSpace(info.OS.Platform+" "+info.OS.PlatformVersion)))
	if info.OS.Uptime > 0 {
		fmt.Fprintf(&b, "• <b>Uptime:</b> %s\n", info.OS.Uptime)
	}
	fmt.Fprintf(&b, "• <b>Go:</b> %s, горутин: %d\n", html.EscapeString(info.Runtime.Version), info.Runtime.Goroutines)

	b.WriteString("\n🧠 <b>CPU</b>\n")
	fmt.Fprintf(&b, "• <b>Логич. ядра:</b> %d\n", info.CPU.LogicalCores)
	if info.CPU.PhysicalCores > 0 {
		fmt.Fprintf(&b, "• <b>Физич. ядра:</b> %d\n", info.CPU.PhysicalCores)
	} else {
		fmt.Fprintf(&b, "• <b>Физич. ядра:</b> %s\n", dash)
	}
	if info.CPU.Model != "" {
		fmt.Fprintf(&b, "• <b>Модель:</b> %s\n", html.EscapeString(info.CPU.Model))
	}
	if info.CPU.FreqMHz > 0 {
		fmt.Fprintf(&b, "• <b>Частота:</b> %.0f MHz\n", info.CPU.FreqMHz)
	}
	if l := info.CPU.Load; l != nil {
		fmt.Fprintf(&b, "• <b>LoadAvg(1/5/15):</b> %.2f / %.2f / %.2f\n", l[0], l[1], l[2])
	} else {
		fmt.Fprintf(&b, "• <b>LoadAvg(1/5/15):</b> %s\n", dash)
	}
	if len(info.CPU.UsagePerCPU) > 0 {
		parts := make([]string, len(info.CPU.UsagePerCPU))
		for i, u := range info.CPU.UsagePerCPU {
			parts[i] = fmt.Sprintf("%.0f%%", u)
		}
		fmt.Fprintf(&b, "• <b>Загрузка:</b> %s\n", strings.Join(parts, " "))
	}

	b.WriteString("\n💾 <b>Память</b>\n")
	if m := info.Memory; m != nil {
		fmt.Fprintf(&b, "• <b>Total:</b> %s\n", HumanBytes(m.Total))
		fmt.Fprintf(&b, "• <b>Used:</b>  %s (%s)\n", HumanBytes(m.Used), Percent(m.Percent))
		fmt.Fprintf(&b, "• <b>Avail:</b> %s\n", HumanBytes(m.Available))
		fmt.Fprintf(&b, "• <b>Swap:</b>  %s / %s (%s)\n", HumanBytes(m.SwapUsed), HumanBytes(m.SwapTotal), Percent(m.SwapPercent))
	} else {
		fmt.Fprintf(&b, "• %s\n", dash)
	}

	b.WriteString("\n🗄 <b>Диск</b>\n")
	if r := info.Disk.Root; r != nil {
		fmt.Fprintf(&b, "• <b>Root /:</b> %s / %s (%s)\n", HumanBytes(r.Used), HumanBytes(r.Total), Percent(r.Percent))
	} else {
		fmt.Fprintf(&b, "• <b>Root /:</b> %s\n", dash)
	}
	if mounts := info.Disk.Mounts; len(mounts) > 0 {
		b.WriteString("• <b>Точки монтирования:</b>\n")
		for i, m := range mounts {
			if i == maxMounts {
				fmt.Fprintf(&b, "  … и ещё %d\n", len(mounts)-maxMounts)
				break
			}
			if m.Usage == nil {
				fmt.Fprintf(&b, "  — %s: %s\n", code(m.Mountpoint), dash)
				continue
			}
			fmt.Fprintf(&b, "  — %s: %s / %s (%s)\n", code(m.Mountpoint), HumanBytes(m.Usage.Used), HumanBytes(m.Usage.Total), Percent(m.Usage.Percent))
		}
	}

	b.WriteString("\n🌐 <b>Сеть</b>\n")
	fmt.Fprintf(&b, "• <b>Public IP:</b> %s\n", code(info.PublicIP))
	fmt.Fprintf(&b, "• <b>Local (primary):</b> %s\n", code(info.Network.Primary))
	if all := allAddrs(info.Network.Interfaces); len(all) > 0 {
		fmt.Fprintf(&b, "• <b>Все адреса:</b> %s\n", codeList(all, maxAddrs))
	}
	if ifaces := info.Network.Interfaces; len(ifaces) > 0 {
		b.WriteString("• <b>Интерфейсы:</b>\n")
		for i, iface := range ifaces {
			if i == maxInterfaces {
				b.WriteString("  … (сокращено)\n")
				break
			}
			fmt.Fprintf(&b, "  — <b>%s</b>: %s\n", html.EscapeString(iface.Name), codeList(iface.Addrs, maxIfaceAddrs))
		}
	}

	return strings.TrimSpace(b.String())
}

func allAddrs(ifaces []Interface) []string {
	seen := make(map[string]bool)
	var out []string
	for _, iface := range ifaces {
		for _, a := range iface.Addrs {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}

func codeList(items []string, limit int) string {
	shown := items
	if len(shown) > limit {
		shown = shown[:limit]
	}
	parts := make([]string, len(shown))
	for i, s := range shown {
		parts[i] = code(s)
	}
	out := strings.Join(parts, ", ")
	if len(items) > limit {
		out += fmt.Sprintf(" … (+%d)", len(items)-limit)
	}
	return out
}

// Chunk splits text on line boundaries into pieces of at most limit bytes.
// A single line longer than limit becomes its own piece.
func Chunk(text string, limit int) []string {
	if limit <= 0 {
		limit = DefaultChunkSize
	}
	var (
		res []string
		cur strings.Builder
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		if cur.Len() > 0 && cur.Len()+len(line) > limit {
			res = append(res, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		res = append(res, cur.String())
	}
	return res
}
