// Package limits provides centralized admission limits for the upload queue.
// This ensures consistent validation across different components of the
// system: file-count ceilings, size windows, and extension/MIME allow-lists
// are all checked here.
package limits
