// Package discovery advertises the output API over mDNS/DNS-SD.
//
// The daemon registers one instance of the _mycodo-output._tcp service on
// its HTTP port so dashboards on the local network can find it without
// configuration. Instance name format: "Mycodo Outputs <hostname>".
// TXT records carry the API version (ver), the API base path (api) and the
// comma-separated output types the daemon can drive (types).
package discovery
