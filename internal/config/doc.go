// Package config provides user configuration management for deckdrill.
//
// This package manages a YAML configuration file that tells the plugin which
// bundled profile to switch to for each device type, which items every picker
// button offers, and how to log. The configuration follows OS-specific
// conventions for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/deckdrill/config.yaml or $HOME/.config/deckdrill/config.yaml
//   - macOS: $HOME/.config/deckdrill/config.yaml
//   - Windows: %APPDATA%\deckdrill\config.yaml
//
// DECKDRILL_CONFIG overrides the location.
//
// # File Format
//
//	version: 1
//	default_profile: DrillDown
//	profiles:
//	    mini: DrillDownMini
//	    xl: DrillDownXL
//	pickers:
//	    com.muurk.deckdrill.picker:
//	        items: [Alpha, Bravo, Charlie]
//	        show_ok: true
//	preferences:
//	    log_level: debug
//	    log_file: /tmp/deckdrill.log
//	    restore_timeout: 5
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry.SetPickerItems("com.example.fruit", []string{"apple", "pear"})
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File writes are protected by a mutex and are atomic (temp file + rename).
package config
