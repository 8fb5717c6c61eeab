package version

// Version is the semantic version of chartpress.
const Version = "1.0.0"
