package utils

import (
	"fmt"
	"net/url"
)

// Parses a listen address of the form tcp://<host>:<port> and returns
// <host>:<port>. The port defaults to defaultPort when omitted.
func parseTcpUrl(urlstr, defaultPort string) (string, error) {
	uri, err := url.Parse(urlstr)
	if err != nil {
		return "", err
	}

	if uri.Scheme != "tcp" {
		return "", fmt.Errorf("%w: unsupported protocol: %s", ErrBadRequest, uri.Scheme)
	}

	if uri.Port() == "" {
		uri.Host += ":" + defaultPort
	}

	return uri.Host, nil
}

// ParseHttpUrl parses tcp://<host>[:<port>], port defaults to 8080.
func ParseHttpUrl(urlstr string) (string, error) {
	return parseTcpUrl(urlstr, "8080")
}

// ParseGrpcUrl parses tcp://<host>[:<port>], port defaults to 9090.
func ParseGrpcUrl(urlstr string) (string, error) {
	return parseTcpUrl(urlstr, "9090")
}
