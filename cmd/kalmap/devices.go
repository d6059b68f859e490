package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"kalmap/internal/config"
	"kalmap/internal/driver"
	"kalmap/internal/engine"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices the configured driver exposes",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

func init() {
	devicesCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

type deviceJSON struct {
	Ordinal  int    `json:"ordinal"`
	Name     string `json:"name"`
	Compute  string `json:"compute"`
	TotalMem uint64 `json:"total_mem"`
	Eligible bool   `json:"eligible"`
}

type devicesPayload struct {
	Driver     string       `json:"driver"`
	MinCompute string       `json:"min_compute"`
	Devices    []deviceJSON `json:"devices"`
}

func runDevices(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "pretty" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be pretty or json)", format)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	drv, err := engine.NewDriver(driver.DriverOptions(cfg))
	if err != nil {
		return err
	}
	major, minor, err := config.ParseCompute(cfg.Device.MinCompute)
	if err != nil {
		return err
	}
	infos, err := engine.New(drv, engine.Options{MinMajor: major, MinMinor: minor}).Devices()
	if err != nil {
		return fmt.Errorf("%s driver: %w", drv.Name(), err)
	}

	if format == "json" {
		return renderDevicesJSON(cmd.OutOrStdout(), drv.Name(), cfg.Device.MinCompute, infos)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "driver %s, compute capability floor %s\n", drv.Name(), cfg.Device.MinCompute)
	fmt.Fprintln(cmd.OutOrStdout(), renderDevicesTable(infos, useColor(cmd, os.Stdout)))
	return nil
}

// formatMem prints a byte count in MiB with grouped digits.
func formatMem(p *message.Printer, bytes uint64) string {
	return p.Sprintf("%d MiB", bytes>>20)
}

func renderDevicesTable(infos []engine.DeviceInfo, colored bool) string {
	p := message.NewPrinter(language.English)
	rows := [][]string{{"#", "NAME", "COMPUTE", "MEMORY", "USABLE"}}
	for _, d := range infos {
		usable := "no"
		if d.Eligible {
			usable = "yes"
		}
		rows = append(rows, []string{strconv.Itoa(d.Ordinal), d.Name, d.Compute(), formatMem(p, d.TotalMem), usable})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, c := range row {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	header := lipgloss.NewStyle().Bold(colored)
	dim := lipgloss.NewStyle()
	if colored {
		dim = dim.Foreground(lipgloss.Color("8"))
	}
	lines := make([]string, len(rows))
	for r, row := range rows {
		style := lipgloss.NewStyle()
		switch {
		case r == 0:
			style = header
		case !infos[r-1].Eligible:
			style = dim
		}
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = style.Width(widths[i]).MarginRight(2).Render(c)
		}
		lines[r] = lipgloss.JoinHorizontal(lipgloss.Top, cells...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderDevicesJSON(out io.Writer, driverName, minCompute string, infos []engine.DeviceInfo) error {
	payload := devicesPayload{Driver: driverName, MinCompute: minCompute, Devices: []deviceJSON{}}
	for _, d := range infos {
		payload.Devices = append(payload.Devices, deviceJSON{
			Ordinal:  d.Ordinal,
			Name:     d.Name,
			Compute:  d.Compute(),
			TotalMem: d.TotalMem,
			Eligible: d.Eligible,
		})
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
