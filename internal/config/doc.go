// Package config defines the application's configuration surface and loads it
// from the environment.
package config
