package config

// Version is the canvasd binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/canvas/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
