// Package version provides build and version information.
package version

// Version is the current application version.
const Version = "0.3.0"

// Milestones:
// 0.3.0 - Headless link report, Prometheus metrics, elevation tracing
// 0.2.0 - Edit form with rename and delete, link pruning on frequency change
// 0.1.0 - Initial release: terminal map, towers, links, Fresnel zone overlay
