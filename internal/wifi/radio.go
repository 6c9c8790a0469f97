package wifi

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"pin/internal/perr"
)

// LinkEvent is a coalesced notification from the station radio.
type LinkEvent int

const (
	LinkGotIP LinkEvent = iota
	LinkDisconnected
	LinkFailed
)

// APConfig describes the access point the FSM asks the radio to start.
type APConfig struct {
	SSID    string
	Channel int
	IP      string // e.g. "192.168.4.1"
}

// Radio is the station/AP control surface the FSM drives. It is the
// external collaborator spec.md treats the SPI bus and ADC as: specified
// here only as an interface, with a concrete os/exec-backed
// implementation underneath for a Linux host running wpa_supplicant and
// hostapd, since no Wi-Fi control library appears anywhere in the
// retrieval pack.
type Radio interface {
	StartAP(cfg APConfig) error
	StopAP() error
	ConnectStation(ctx context.Context, ssid, password string) error
	Disconnect() error
	Scan(ctx context.Context) ([]Network, error)
	// Events delivers coalesced link-state notifications; the FSM drains
	// it once per tick rather than blocking on it.
	Events() <-chan LinkEvent
	// MACSuffix returns the last two bytes of the station interface's MAC
	// address as uppercase hex, used to build the AP SSID.
	MACSuffix() string
}

// wpaRadio drives wpa_supplicant (station) and hostapd (AP) via their
// CLI tools, the same shell-command-per-operation shape the teacher uses
// for nothing but which is the only viable interface to a kernel Wi-Fi
// stack outside of cgo bindings.
type wpaRadio struct {
	iface     string
	apIface   string
	events    chan LinkEvent
	macSuffix string
}

// NewRadio builds a Radio bound to the named station and AP interfaces
// (they may be the same interface in AP+STA-capable hardware).
func NewRadio(iface, apIface string) Radio {
	return &wpaRadio{
		iface:     iface,
		apIface:   apIface,
		events:    make(chan LinkEvent, 4),
		macSuffix: readMACSuffix(iface),
	}
}

func (r *wpaRadio) Events() <-chan LinkEvent { return r.events }

func (r *wpaRadio) MACSuffix() string { return r.macSuffix }

func (r *wpaRadio) StartAP(cfg APConfig) error {
	if err := run("hostapd_cli", "-i", r.apIface, "enable"); err != nil {
		return perr.Wrap(perr.HardwareFail, "wifi.start_ap", cfg.SSID, err)
	}
	return nil
}

func (r *wpaRadio) StopAP() error {
	if err := run("hostapd_cli", "-i", r.apIface, "disable"); err != nil {
		return perr.Wrap(perr.HardwareFail, "wifi.stop_ap", r.apIface, err)
	}
	return nil
}

func (r *wpaRadio) ConnectStation(ctx context.Context, ssid, password string) error {
	netID, err := runOutput("wpa_cli", "-i", r.iface, "add_network")
	if err != nil {
		return perr.Wrap(perr.HardwareFail, "wifi.connect", ssid, err)
	}
	netID = strings.TrimSpace(netID)

	cmds := [][]string{
		{"wpa_cli", "-i", r.iface, "set_network", netID, "ssid", strconv.Quote(ssid)},
		{"wpa_cli", "-i", r.iface, "set_network", netID, "psk", strconv.Quote(password)},
		{"wpa_cli", "-i", r.iface, "enable_network", netID},
		{"wpa_cli", "-i", r.iface, "select_network", netID},
	}
	for _, c := range cmds {
		if err := run(c[0], c[1:]...); err != nil {
			return perr.Wrap(perr.HardwareFail, "wifi.connect", ssid, err)
		}
	}
	return nil
}

func (r *wpaRadio) Disconnect() error {
	if err := run("wpa_cli", "-i", r.iface, "disconnect"); err != nil {
		return perr.Wrap(perr.HardwareFail, "wifi.disconnect", r.iface, err)
	}
	return nil
}

func (r *wpaRadio) Scan(ctx context.Context) ([]Network, error) {
	if err := run("wpa_cli", "-i", r.iface, "scan"); err != nil {
		return nil, perr.Wrap(perr.HardwareFail, "wifi.scan", r.iface, err)
	}
	out, err := runOutput("wpa_cli", "-i", r.iface, "scan_results")
	if err != nil {
		return nil, perr.Wrap(perr.HardwareFail, "wifi.scan", r.iface, err)
	}
	return parseScanResults(out), nil
}

// parseScanResults parses wpa_cli's "bssid / frequency / signal level /
// flags / ssid" tab-separated table (header line skipped).
func parseScanResults(out string) []Network {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	nets := make([]Network, 0, len(lines))
	for i, line := range lines {
		if i == 0 || line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 5 {
			continue
		}
		rssi, _ := strconv.Atoi(fields[2])
		nets = append(nets, Network{
			SSID:    fields[4],
			RSSI:    rssi,
			Auth:    authFromFlags(fields[3]),
			Channel: channelFromFreq(fields[1]),
		})
	}
	sortNetworksByRSSI(nets)
	return nets
}

func authFromFlags(flags string) string {
	if strings.Contains(flags, "WPA") {
		return "wpa"
	}
	return "open"
}

func channelFromFreq(freq string) int {
	mhz, err := strconv.Atoi(freq)
	if err != nil {
		return 0
	}
	if mhz == 2484 {
		return 14
	}
	if mhz >= 2412 && mhz <= 2472 {
		return (mhz-2412)/5 + 1
	}
	return 0
}

func sortNetworksByRSSI(nets []Network) {
	for i := 1; i < len(nets); i++ {
		for j := i; j > 0 && nets[j].RSSI > nets[j-1].RSSI; j-- {
			nets[j], nets[j-1] = nets[j-1], nets[j]
		}
	}
}

func readMACSuffix(iface string) string {
	out, err := runOutput("cat", fmt.Sprintf("/sys/class/net/%s/address", iface))
	if err != nil {
		return "0000"
	}
	mac := strings.TrimSpace(out)
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return "0000"
	}
	return strings.ToUpper(parts[4] + parts[5])
}

func run(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Run()
}

func runOutput(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	return string(out), err
}
