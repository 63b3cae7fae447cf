package netutil

import "crypto/tls"

// TLSConfig returns the default TLS configuration: TLS 1.2 minimum
// with forward-secret cipher suites for 1.2 connections.
func TLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		},
	}
}

// InsecureTLSConfig returns a configuration that skips certificate
// verification. Only for explicit opt-in against local test registries.
func InsecureTLSConfig() *tls.Config {
	cfg := TLSConfig()
	cfg.InsecureSkipVerify = true
	return cfg
}
