package config

const (
	defaultConfigPath             = "~/.config/dsrec/config.toml"
	defaultDataDir                = "./dataset"
	defaultLogDir                 = "~/.local/share/dsrec/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
	defaultBroadcastAddr          = "10.12.41.255"
	defaultSyncPort               = 30728
	defaultBindAddr               = "0.0.0.0"
	defaultReceiveTimeoutMS       = 100
	defaultDriver                 = "sim"
	defaultRGBDWidth              = 640
	defaultRGBDHeight             = 480
	defaultRGBDFPS                = 30
	defaultFrameTimeoutMS         = 5000
	defaultRGBDPreviewWidth       = 480
	defaultRGBDPreviewHeight      = 320
	defaultEventWidth             = 1280
	defaultEventHeight            = 800
	defaultEventThreshold         = 70
	defaultEventPreviewIntervalMS = 10
	defaultEventPreviewWidth      = 480
	defaultEventPreviewHeight     = 300
	defaultWriterPollIntervalMS   = 100
	defaultNotifyRequestTimeout   = 10
	defaultRealSenseVendorID      = "8086"
)

// Layout names accepted by node.layout.
const (
	LayoutPortrait  = "portrait"
	LayoutLandscape = "landscape"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Node: Node{
			Layout: LayoutPortrait,
		},
		Sync: Sync{
			BroadcastAddr:    defaultBroadcastAddr,
			Port:             defaultSyncPort,
			BindAddr:         defaultBindAddr,
			ReceiveTimeoutMS: defaultReceiveTimeoutMS,
		},
		RGBD: RGBD{
			Driver:         defaultDriver,
			Width:          defaultRGBDWidth,
			Height:         defaultRGBDHeight,
			FPS:            defaultRGBDFPS,
			FrameTimeoutMS: defaultFrameTimeoutMS,
			PreviewWidth:   defaultRGBDPreviewWidth,
			PreviewHeight:  defaultRGBDPreviewHeight,
		},
		Event: Event{
			Driver:            defaultDriver,
			Width:             defaultEventWidth,
			Height:            defaultEventHeight,
			Threshold:         defaultEventThreshold,
			PreviewIntervalMS: defaultEventPreviewIntervalMS,
			PreviewWidth:      defaultEventPreviewWidth,
			PreviewHeight:     defaultEventPreviewHeight,
		},
		Writer: Writer{
			PollIntervalMS: defaultWriterPollIntervalMS,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			SessionSaved:   true,
			Errors:         true,
		},
		Hotplug: Hotplug{
			Enabled:   false,
			VendorIDs: []string{defaultRealSenseVendorID},
		},
	}
}
