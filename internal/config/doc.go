// Package config provides configuration structures and utilities for vizscan.
// It defines the main configuration options for authentication, workspace
// enumeration, API throttling, and output preferences.
package config
