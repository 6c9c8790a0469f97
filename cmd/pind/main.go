// Command pind is the device daemon: it wires the panel driver, the
// display façade, the canvas engine, the plugin runtime, the Wi-Fi
// provisioning FSM, the OTA engine and the HTTP surface together and
// runs until asked to stop, in the style of the teacher's cmd/epdcal.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"pin/internal/battery"
	"pin/internal/canvas"
	"pin/internal/config"
	"pin/internal/display"
	"pin/internal/kv"
	appLog "pin/internal/log"
	"pin/internal/ota"
	"pin/internal/panel"
	"pin/internal/plugin"
	"pin/internal/plugin/builtin"
	"pin/internal/web"
	"pin/internal/wifi"
)

type flagConfig struct {
	configPath string
	listen     string
	noPanel    bool
}

func main() {
	appLog.Info("pind starting")

	flags := parseFlags()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		cfg.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"state_dir", cfg.StateDir,
		"device_name", cfg.DeviceName,
		"firmware_version", cfg.FirmwareVersion,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	store, err := kv.Open(filepath.Join(cfg.StateDir, "kv"))
	if err != nil {
		appLog.Error("failed to open kv store", err)
		os.Exit(1)
	}

	drv, displaySvc := initDisplay(ctx, cfg, flags.noPanel)
	if drv != nil {
		defer drv.Close()
	}

	canvasEngine := canvas.New(store, nil)

	pluginRT := plugin.New(store, cfg.Plugins.HTTPAllowlist, pluginLogAdapter{})
	registerBuiltinPlugins(ctx, pluginRT, cfg)

	radio := wifi.NewRadio(cfg.Wifi.StationInterface, cfg.Wifi.APInterface)
	wifiCfg := wifi.DefaultConfig()
	wifiCfg.APSSIDPrefix = cfg.Wifi.APSSIDPrefix
	if cfg.Wifi.ConfigTimeoutSec > 0 {
		wifiCfg.ConfigTimeout = time.Duration(cfg.Wifi.ConfigTimeoutSec) * time.Second
	}
	if cfg.Wifi.ConnectTimeoutSec > 0 {
		wifiCfg.ConnectTimeout = time.Duration(cfg.Wifi.ConnectTimeoutSec) * time.Second
	}
	if cfg.Wifi.MaxRetry > 0 {
		wifiCfg.MaxRetry = cfg.Wifi.MaxRetry
	}
	wifiFSM := wifi.New(radio, store, wifiCfg)
	go wifiFSM.Run(ctx)

	otaEngine := ota.New(store, cfg.OTA.CurrentVersion)
	if err := otaEngine.Init(); err != nil {
		appLog.Error("ota init failed", err)
	}
	if cfg.OTA.AutoCheckHours > 0 && cfg.OTA.ManifestURL != "" {
		if err := otaEngine.SetAutoCheckInterval(cfg.OTA.AutoCheckHours, cfg.OTA.ManifestURL); err != nil {
			appLog.Error("ota auto-check scheduling failed", err)
		}
	}

	batteryRd := battery.NewReader("", 0)

	srv := web.NewServer(web.Deps{
		Config:       cfg,
		ConfigPath:   flags.configPath,
		CanvasEngine: canvasEngine,
		DisplaySvc:   displaySvc,
		PluginRT:     pluginRT,
		WifiFSM:      wifiFSM,
		OTAEngine:    otaEngine,
		BatteryRd:    batteryRd,
		Restart:      func(factoryReset bool) { appLog.Info("restart requested", "factory_reset", factoryReset); cancel() },
	})

	httpSrv := &http.Server{Addr: cfg.Listen, Handler: srv.Handler()}
	go func() {
		appLog.Info("http server listening", "listen", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Error("http server failed", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http server shutdown failed", err)
	}

	wifiFSM.Stop()
	pluginRT.Close()

	appLog.Info("pind exiting")
}

// initDisplay brings the panel driver up and wraps it in the display
// façade. A failure (no SPI bus present, e.g. running off-device) is
// logged and degraded to nil; the web handlers already check for a nil
// display service and answer 503 rather than panic.
func initDisplay(ctx context.Context, cfg *config.Config, skip bool) (*panel.Driver, *display.Service) {
	if skip {
		appLog.Info("panel disabled by flag; display endpoints will report unavailable")
		return nil, nil
	}

	busCfg := panel.BusConfig{
		SPIPort: cfg.Panel.SPIBus,
		PinRST:  cfg.Panel.ResetPin,
		PinDC:   cfg.Panel.DCPin,
		PinCS:   cfg.Panel.CSPin,
		PinBusy: cfg.Panel.BusyPin,
	}
	drv, err := panel.Init(ctx, busCfg)
	if err != nil {
		appLog.Error("panel init failed; display endpoints will report unavailable", err)
		return nil, nil
	}

	policy := display.DefaultPolicy()
	if cfg.Display.PartialStreakLimit > 0 {
		policy.PartialStreakLimit = cfg.Display.PartialStreakLimit
	}
	if cfg.Display.FullRefreshMinutes > 0 {
		policy.FullRefreshInterval = time.Duration(cfg.Display.FullRefreshMinutes) * time.Minute
	}
	if cfg.Display.SleepAfterInactiveMin > 0 {
		policy.SleepAfterInactive = time.Duration(cfg.Display.SleepAfterInactiveMin) * time.Minute
	}

	return drv, display.New(drv, policy)
}

// registerBuiltinPlugins installs the built-in clock/weather/calendar
// plugins and enables the ones named in cfg.Plugins.AutoStart, mirroring
// the teacher's one-entry-per-ICS-source registration but generalized to
// the capability-set plugin interface.
func registerBuiltinPlugins(ctx context.Context, rt *plugin.Runtime, cfg *config.Config) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone for calendar plugin; falling back to UTC", err, "timezone", cfg.Timezone)
		loc = time.UTC
	}

	clockPlugin := builtin.NewClock()
	if err := rt.Register(clockPlugin, clockPlugin.DefaultConfig()); err != nil {
		appLog.Error("failed to register clock plugin", err)
	}

	weatherPlugin := builtin.NewWeather()
	if err := rt.Register(weatherPlugin, weatherPlugin.DefaultConfig()); err != nil {
		appLog.Error("failed to register weather plugin", err)
	}

	calendarPlugin := builtin.NewCalendar(filepath.Join(cfg.StateDir, "calendar-cache"), loc)
	if err := rt.Register(calendarPlugin, calendarPlugin.DefaultConfig()); err != nil {
		appLog.Error("failed to register calendar plugin", err)
	}

	for _, name := range cfg.Plugins.AutoStart {
		if err := rt.Enable(ctx, name); err != nil {
			appLog.Error("failed to auto-start plugin", err, "plugin", name)
		}
	}
}

// pluginLogAdapter routes plugin.Runtime's internal log calls through the
// daemon's structured logger.
type pluginLogAdapter struct{}

func (pluginLogAdapter) Logf(level plugin.LogLevel, tag, format string, args ...any) {
	msg := tag + ": " + fmt.Sprintf(format, args...)
	switch level {
	case plugin.LogDebug:
		appLog.Debug(msg)
	case plugin.LogError:
		appLog.Error(msg, nil)
	default:
		appLog.Info(msg)
	}
}

func parseFlags() flagConfig {
	var f flagConfig
	flag.StringVar(&f.configPath, "config", "/etc/pin/config.yaml", "path to config file")
	flag.StringVar(&f.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&f.noPanel, "no-panel", false, "skip panel hardware init (display endpoints report unavailable)")
	flag.Parse()
	return f
}
