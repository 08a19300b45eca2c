// Command procfilter is a filtering proxy that applies procedural cosmetic
// rules to HTML documents.  With --apply it filters a single local document
// instead, and with --watch it keeps that document live.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/gomitmproxy/mitm"
	"github.com/AdguardTeam/procfilter/proxy"
	goFlags "github.com/jessevdk/go-flags"
)

// certValidity is the validity period of the generated leaf certificates.
const certValidity = 7 * 24 * time.Hour

func main() {
	var options Options
	parser := goFlags.NewParser(&options, goFlags.Default)

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*goFlags.Error); ok && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	err = run(options)
	if err != nil {
		log.Fatalf("procfilter: %s", err)
	}
}

// run configures the log and starts the mode selected by options.
func run(options Options) (err error) {
	if options.Verbose {
		log.SetLevel(log.DEBUG)
	}

	if options.LogOutput != "" {
		// #nosec G302 G304 -- Trust the path from the command line.
		file, ferr := os.OpenFile(options.LogOutput, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if ferr != nil {
			return fmt.Errorf("creating log file: %w", ferr)
		}
		defer func() { err = errors.WithDeferred(err, file.Close()) }()

		log.SetOutput(file)
	}

	fileConf := &fileConfig{}
	if options.ConfigPath != "" {
		fileConf, err = readConfig(options.ConfigPath)
		if err != nil {
			return err
		}
	}
	fileConf.merge(&options)

	filterConf := proxy.FilterConfig{
		Reapply:    fileConf.Reapply.toInternal(),
		FlushLimit: fileConf.FlushLimit,
	}

	if options.ApplyPath != "" && options.Watch {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = watch(ctx, os.Stdout, os.Stdin, options, filterConf)
		if err != nil {
			return fmt.Errorf("watching %s: %w", options.ApplyPath, err)
		}

		return nil
	}

	if options.ApplyPath != "" {
		err = apply(os.Stdout, options, filterConf)
		if err != nil {
			return fmt.Errorf("applying filters to %s: %w", options.ApplyPath, err)
		}

		return nil
	}

	conf, err := newServerConfig(options)
	if err != nil {
		return err
	}

	conf.PayloadCacheSize = fileConf.PayloadCacheSize
	conf.Filter = filterConf

	return runProxy(conf)
}

// runProxy serves until the process receives SIGINT or SIGTERM.
func runProxy(conf proxy.Config) (err error) {
	log.Info("procfilter: starting proxy with %s", &conf)

	server, err := proxy.NewServer(conf)
	if err != nil {
		return fmt.Errorf("creating proxy server: %w", err)
	}

	err = server.Start()
	if err != nil {
		return fmt.Errorf("starting proxy server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info("procfilter: received %s, stopping", sig)

	return server.Close()
}

// newServerConfig builds the proxy configuration from the command-line
// options.
func newServerConfig(options Options) (conf proxy.Config, err error) {
	listenIP := net.ParseIP(options.ListenAddr)
	if listenIP == nil {
		return conf, fmt.Errorf("bad listen address %q", options.ListenAddr)
	}

	if options.TLSCertPath == "" || options.TLSKeyPath == "" {
		return conf, errors.Error("the root certificate and its private key must be specified")
	}

	mitmConf, err := newMITMConfig(options.TLSCertPath, options.TLSKeyPath)
	if err != nil {
		return conf, err
	}

	var tlsConf *tls.Config
	if options.HTTPSProxy {
		tlsConf, err = newProxyTLSConfig(mitmConf, options.HTTPSHostname)
		if err != nil {
			return conf, err
		}
	}

	conf.FiltersPaths = make(map[int]string, len(options.FilterLists))
	for i, path := range options.FilterLists {
		conf.FiltersPaths[i] = path
	}

	conf.ProxyConfig = gomitmproxy.Config{
		ListenAddr: &net.TCPAddr{IP: listenIP, Port: options.ListenPort},
		TLSConfig:  tlsConf,
		Username:   options.ProxyUser,
		Password:   options.ProxyPassword,
		APIHost:    "procfilter",
		MITMConfig: mitmConf,
	}

	return conf, nil
}

// newProxyTLSConfig returns the TLS configuration of the proxy listener
// itself, with a certificate for hostname issued by mitmConf.
func newProxyTLSConfig(mitmConf *mitm.Config, hostname string) (conf *tls.Config, err error) {
	if hostname == "" {
		return nil, errors.Error("https hostname must be specified")
	}

	cert, err := mitmConf.GetOrCreateCert(hostname)
	if err != nil {
		return nil, fmt.Errorf("generating proxy certificate for %s: %w", hostname, err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		ServerName:   hostname,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// newMITMConfig loads the root CA used to sign the intercepted connections.
func newMITMConfig(certPath, keyPath string) (conf *mitm.Config, err error) {
	pair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("loading root ca: %w", err)
	}

	key, ok := pair.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("root ca key: bad type %T, want rsa", pair.PrivateKey)
	}

	ca, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsing root ca: %w", err)
	}

	conf, err = mitm.NewConfig(ca, key, nil)
	if err != nil {
		return nil, fmt.Errorf("creating mitm config: %w", err)
	}

	conf.SetValidity(certValidity)
	conf.SetOrganization("AdGuard")

	return conf, nil
}
