package version

// Version is the release version stamped into reports.
var Version = "0.4.1"
