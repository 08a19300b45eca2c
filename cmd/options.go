package main

// Options are the command-line options.
type Options struct {
	// Verbose enables the debug-level log.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`

	// LogOutput is the path to the log file.
	LogOutput string `short:"o" long:"output" description:"Path to the log file. If not set, it writes to stderr." default:""`

	// ConfigPath is the path to the YAML configuration file.
	ConfigPath string `long:"config" description:"Path to the YAML configuration file."`

	// FilterLists are the paths to the filter lists.
	FilterLists []string `short:"f" long:"filter" description:"Path to the filter list. Can be specified multiple times."`

	// Proxy mode.

	ListenAddr string `short:"l" long:"listen" description:"Listen address." default:"0.0.0.0"`
	ListenPort int    `short:"p" long:"port" description:"Listen port." default:"8080"`

	// TLSCertPath is the path to the root certificate the proxy signs the
	// intercepted connections with.
	TLSCertPath string `short:"c" long:"ca-cert" description:"Path to a file with the root certificate. Required in the proxy mode."`

	// TLSKeyPath is the path to the private key of the root certificate.
	TLSKeyPath string `short:"k" long:"ca-key" description:"Path to a file with the CA private key. Required in the proxy mode."`

	ProxyUser     string `short:"u" long:"username" description:"Proxy auth username. If specified, proxy authorization is required."`
	ProxyPassword string `short:"a" long:"password" description:"Proxy auth password. If specified, proxy authorization is required."`

	// HTTPSProxy makes the proxy itself listen for TLS connections.
	HTTPSProxy    bool   `short:"t" long:"https" description:"Run an HTTPS proxy (otherwise, it runs plain HTTP proxy)." optional:"yes" optional-value:"true"`
	HTTPSHostname string `short:"n" long:"https-name" description:"Server name or IP address of the HTTPS proxy."`

	// Apply mode.

	// ApplyPath, if set, is the HTML file to filter instead of running the
	// proxy.
	ApplyPath string `long:"apply" description:"Filter the HTML file, print the result, and exit."`

	// Hostname is the hostname the applied document is loaded from.
	Hostname string `long:"hostname" description:"Hostname of the applied document." default:"localhost"`

	// Path is the URL path the applied document is loaded at.
	Path string `long:"path" description:"URL path of the applied document." default:"/"`

	// Report prints the hidden elements instead of the document.
	Report bool `long:"report" description:"Print the hidden elements instead of the document." optional:"yes" optional-value:"true"`

	// Watch keeps the applied document live, appending the HTML fragments
	// read from stdin, until stdin is closed.
	Watch bool `long:"watch" description:"Keep the applied document live, reading HTML fragments and \"navigate PATH\" lines from stdin." optional:"yes" optional-value:"true"`
}
