package redisutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// TLSFiles points at PEM material for a TLS connection. The zero value
// leaves whatever the URL scheme implies (rediss:// enables TLS).
type TLSFiles struct {
	CA         string
	Cert       string
	Key        string
	ServerName string
	Insecure   bool
}

func (f TLSFiles) empty() bool {
	return f.CA == "" && f.Cert == "" && f.Key == "" && f.ServerName == "" && !f.Insecure
}

// Options describe how to reach the config store.
type Options struct {
	URL string
	// ClusterAddrs switches to a cluster client when set.
	ClusterAddrs []string
	TLS          TLSFiles
}

// NewClient builds a universal client. It does not connect.
func NewClient(opts Options) (redis.UniversalClient, error) {
	parsed, err := ParseOptions(opts.URL, opts.TLS)
	if err != nil {
		return nil, err
	}
	addrs := opts.ClusterAddrs
	if len(addrs) == 0 {
		addrs = []string{parsed.Addr}
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:     addrs,
		Username:  parsed.Username,
		Password:  parsed.Password,
		DB:        parsed.DB,
		TLSConfig: parsed.TLSConfig,
	}), nil
}

// ParseOptions parses a redis:// or rediss:// URL and layers files on top.
func ParseOptions(url string, files TLSFiles) (*redis.Options, error) {
	if url == "" {
		return nil, errors.New("redis url required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if files.empty() {
		return opts, nil
	}
	cfg, err := tlsConfig(opts.TLSConfig, files)
	if err != nil {
		return nil, err
	}
	opts.TLSConfig = cfg
	return opts, nil
}

func tlsConfig(existing *tls.Config, files TLSFiles) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if existing != nil {
		cfg = existing.Clone()
	}
	if files.ServerName != "" {
		cfg.ServerName = files.ServerName
	}
	cfg.InsecureSkipVerify = cfg.InsecureSkipVerify || files.Insecure

	if files.CA != "" {
		pem, err := os.ReadFile(files.CA)
		if err != nil {
			return nil, fmt.Errorf("redis tls ca read: %w", err)
		}
		pool := cfg.RootCAs
		if pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("redis tls ca parse: %s", files.CA)
		}
		cfg.RootCAs = pool
	}
	if (files.Cert == "") != (files.Key == "") {
		return nil, errors.New("redis tls cert and key must be set together")
	}
	if files.Cert != "" {
		pair, err := tls.LoadX509KeyPair(files.Cert, files.Key)
		if err != nil {
			return nil, fmt.Errorf("redis tls keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}
	return cfg, nil
}
