package espalier

// Version is the library release version, overridable at build time via
// -ldflags "-X github.com/aretw0/espalier.Version=...".
var Version = "0.1.0"
