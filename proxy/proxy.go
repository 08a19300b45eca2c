// Package proxy implements a MITM proxy that applies procedural cosmetic
// filters to the HTML documents passing through it.
package proxy

import (
	"fmt"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/log"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/procfilter"
	"github.com/AdguardTeam/procfilter/filterlist"
)

const sessionPropKey = "session"

// Config contains the MITM proxy configuration.
type Config struct {
	// ProxyConfig is the configuration of the MITM proxy.
	ProxyConfig gomitmproxy.Config

	// FiltersPaths maps filter list identifiers to the paths of the lists.
	FiltersPaths map[int]string

	// PayloadCacheSize is the number of hostnames to keep payloads for.
	// Zero means procfilter.DefaultPayloadCacheSize.
	PayloadCacheSize int

	// Filter controls the evaluation of payloads over documents.
	Filter FilterConfig
}

// String returns the description of the configuration.
func (c *Config) String() (s string) {
	sb := &strings.Builder{}
	if c.ProxyConfig.ListenAddr != nil {
		fmt.Fprintf(sb, "Listen addr: %s\n", c.ProxyConfig.ListenAddr)
	}

	fmt.Fprintf(sb, "MITM status: %v\n", c.ProxyConfig.MITMConfig != nil)
	fmt.Fprintf(sb, "Run as HTTPS proxy: %v\n", c.ProxyConfig.TLSConfig != nil)

	if c.ProxyConfig.Username != "" {
		fmt.Fprintf(sb, "Proxy auth: %s/****\n", c.ProxyConfig.Username)
	}

	if c.ProxyConfig.APIHost != "" {
		fmt.Fprintf(sb, "API host: %s\n", c.ProxyConfig.APIHost)
	}

	if len(c.FiltersPaths) > 0 {
		fmt.Fprintf(sb, "Filter lists: %d\n", len(c.FiltersPaths))
		for i, v := range c.FiltersPaths {
			fmt.Fprintf(sb, "%d: %s\n", i, v)
		}
	}

	return sb.String()
}

// Server contains the current server state.
type Server struct {
	// proxyServer is the MITM proxy server instance.
	proxyServer *gomitmproxy.Proxy

	storage *filterlist.RuleStorage
	engine  *procfilter.PayloadEngine

	// createdAt is the time the server was created at.
	createdAt time.Time

	Config
}

// NewServer creates a new instance of the MITM server.
func NewServer(config Config) (s *Server, err error) {
	log.Info("proxy: initializing the server:\n%s", config.String())

	storage, err := buildStorage(config.FiltersPaths)
	if err != nil {
		return nil, err
	}

	engine, err := procfilter.NewPayloadEngine(storage, config.PayloadCacheSize)
	if err != nil {
		return nil, errors.WithDeferred(err, storage.Close())
	}

	s = &Server{
		storage:   storage,
		engine:    engine,
		createdAt: time.Now(),
		Config:    config,
	}

	s.ProxyConfig.OnRequest = s.onRequest
	s.ProxyConfig.OnResponse = s.onResponse
	s.proxyServer = gomitmproxy.NewProxy(s.ProxyConfig)

	return s, nil
}

// Start starts the proxy server.
func (s *Server) Start() (err error) {
	return s.proxyServer.Start()
}

// Close stops the proxy server and closes the filter lists.
func (s *Server) Close() (err error) {
	s.proxyServer.Close()

	return s.storage.Close()
}

// buildStorage opens the filter lists at paths.
func buildStorage(paths map[int]string) (s *filterlist.RuleStorage, err error) {
	var lists []filterlist.RuleList
	for id, path := range paths {
		var list *filterlist.FileRuleList
		list, err = filterlist.NewFileRuleList(id, path)
		if err != nil {
			for _, l := range lists {
				err = errors.WithDeferred(err, l.Close())
			}

			return nil, fmt.Errorf("creating rule list %d: %w", id, err)
		}

		lists = append(lists, list)
	}

	s, err = filterlist.NewRuleStorage(lists)
	if err != nil {
		return nil, fmt.Errorf("initializing rule storage: %w", err)
	}

	return s, nil
}
