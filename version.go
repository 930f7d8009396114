package consentflow

// Version is the release version, overridable at build time via
// -ldflags "-X github.com/kitewire/consentflow.Version=...".
var Version = "0.1.0"
