package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/fantasma-ai/fantasma/internal/skill"
)

// Filesystems and mountpoints that only add noise to a spoken report.
var (
	ignoredFSTypes = map[string]bool{
		"squashfs": true, "tmpfs": true, "devtmpfs": true,
		"overlay": true, "iso9660": true, "autofs": true,
	}
	ignoredMountpoints = map[string]bool{"/boot/efi": true}
)

// SysStats reports host CPU, memory, disk and temperature over voice. The
// probe functions are fields so tests can run without a real host.
type SysStats struct {
	CPUPercent    func(ctx context.Context) ([]float64, error)
	VirtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	Partitions    func(ctx context.Context) ([]disk.PartitionStat, error)
	Usage         func(ctx context.Context, path string) (*disk.UsageStat, error)
	Temperatures  func(ctx context.Context) ([]host.TemperatureStat, error)
}

var _ skill.Skill = (*SysStats)(nil)

// NewSysStats creates the skill with the real host probes.
func NewSysStats() *SysStats {
	return &SysStats{
		CPUPercent: func(ctx context.Context) ([]float64, error) {
			return cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
		},
		VirtualMemory: mem.VirtualMemoryWithContext,
		Partitions: func(ctx context.Context) ([]disk.PartitionStat, error) {
			return disk.PartitionsWithContext(ctx, false)
		},
		Usage:        disk.UsageWithContext,
		Temperatures: host.SensorsTemperaturesWithContext,
	}
}

// Name implements [skill.Skill].
func (*SysStats) Name() string { return "sysstats" }

// TriggerType implements [skill.Skill].
func (*SysStats) TriggerType() skill.TriggerType { return skill.TriggerContains }

// Triggers implements [skill.Skill].
func (*SysStats) Triggers() []string {
	return []string{
		"sistema", "cpu", "ram", "memória",
		"disco", "armazenamento", "ocupação", "temperatura",
	}
}

// Handle implements [skill.Skill]. The report only covers what was asked
// about; a generic "como está o sistema" gets everything.
func (s *SysStats) Handle(ctx context.Context, lower, _ string) (string, error) {
	wantAll := strings.Contains(lower, "sistema") || strings.Contains(lower, "ocupação")
	var parts []string

	if wantAll || strings.Contains(lower, "cpu") || strings.Contains(lower, "temperatura") {
		if pcts, err := s.CPUPercent(ctx); err == nil && len(pcts) > 0 {
			parts = append(parts, fmt.Sprintf("O processador está a %.0f por cento", pcts[0]))
		}
		if t := s.maxTemperature(ctx); t > 0 {
			parts = append(parts, fmt.Sprintf("a temperatura é %.0f graus", t))
		}
	}

	if wantAll || strings.Contains(lower, "ram") || strings.Contains(lower, "memória") {
		if vm, err := s.VirtualMemory(ctx); err == nil {
			parts = append(parts, fmt.Sprintf("a memória está a %.0f por cento, %s livres",
				vm.UsedPercent, formatBytes(vm.Available)))
		}
	}

	if wantAll || strings.Contains(lower, "disco") || strings.Contains(lower, "armazenamento") {
		parts = append(parts, s.diskReport(ctx)...)
	}

	if len(parts) == 0 {
		return "", nil
	}
	return strings.Join(parts, ". ") + ".", nil
}

// maxTemperature returns the hottest sensor reading, or 0 when the host has
// none.
func (s *SysStats) maxTemperature(ctx context.Context) float64 {
	temps, err := s.Temperatures(ctx)
	if err != nil {
		return 0
	}
	var max float64
	for _, t := range temps {
		if t.Temperature > max {
			max = t.Temperature
		}
	}
	return max
}

func (s *SysStats) diskReport(ctx context.Context) []string {
	parts, err := s.Partitions(ctx)
	if err != nil {
		return nil
	}
	var out []string
	for _, p := range parts {
		if ignoredFSTypes[p.Fstype] || ignoredMountpoints[p.Mountpoint] ||
			strings.HasPrefix(p.Fstype, "loop") {
			continue
		}
		u, err := s.Usage(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
			continue
		}
		name := "o disco principal"
		if p.Mountpoint != "/" {
			name = "o disco em " + p.Mountpoint
		}
		out = append(out, fmt.Sprintf("%s está a %.0f por cento, com %s livres",
			name, u.UsedPercent, formatBytes(u.Free)))
	}
	return out
}

// formatBytes renders a byte count the way it would be spoken.
func formatBytes(b uint64) string {
	const (
		gb = 1 << 30
		tb = 1 << 40
	)
	if b >= tb {
		return fmt.Sprintf("%.1f terabytes", float64(b)/tb)
	}
	return fmt.Sprintf("%.1f gigas", float64(b)/gb)
}
