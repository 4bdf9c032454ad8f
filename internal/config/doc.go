// Package config loads ocupado's TOML configuration.
//
// # Overview
//
// ocupado needs a cloud credential, the cloud base URL and the list of door
// sensors to watch. Everything else has a default. Unlike preferences, the
// config is not optional: a missing file, an unparseable file or a missing
// required field makes Load return an error wrapping ErrInvalid, and the
// binary exits before anything starts.
//
// # Configuration Discovery
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/ocupado/config.toml
//  3. OCUPADO_ACCESS_TOKEN and OCUPADO_BASE_URL override the file
//
// # TOML Format
//
//	base_url     = "https://api.particle.io"   # default
//	access_token = "..."                       # required
//	retry_delay  = "3s"                        # stream reconnect delay
//	probe_every  = "10s"                       # network probe interval
//	log_level    = "info"
//	log_file     = "~/.local/share/ocupado/ocupado.log"
//	http_addr    = "127.0.0.1:9100"            # empty disables the status API
//	theme        = "Nightfox"                  # initial theme when no prefs exist
//
//	[[devices]]
//	id   = "e00fce68..."                       # required, unique
//	name = "Toilet 1"                          # defaults to the id
//
//	[mqtt]
//	broker       = "tcp://localhost:1883"      # empty disables MQTT
//	topic_prefix = "ocupado"
//	client_id    = ""                          # defaults to ocupado-<uuid>
//	username     = ""
//	password     = ""
//
// Durations use Go syntax ("500ms", "3s", "1m"). Device order in the file is
// the display order.
//
// # Path Expansion
//
// Tilde paths are expanded to the home directory and relative paths are made
// absolute, for both the config location and log_file.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//		return err
//	}
//	specs := cfg.DeviceSpecs()
package config
