package settings

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

type storeConnInfo struct {
	addr     string
	username string
	password string
	selectDB int
	useTLS   bool
}

// parseStoreURL accepts redis://, rediss:// (TLS) and valkey:// URLs or a bare host[:port].
func parseStoreURL(raw string) (storeConnInfo, error) {
	if strings.TrimSpace(raw) == "" {
		return storeConnInfo{}, errors.New("settings store url is empty")
	}

	if !strings.Contains(raw, "://") {
		return parseStoreAddr(raw)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return storeConnInfo{}, fmt.Errorf("parse url: %w", err)
	}

	useTLS := false
	switch strings.ToLower(parsed.Scheme) {
	case "redis", "valkey":
	case "rediss", "valkeys":
		useTLS = true
	default:
		return storeConnInfo{}, fmt.Errorf("unsupported settings store scheme %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return storeConnInfo{}, errors.New("settings store host missing")
	}

	port := parsed.Port()
	if port == "" {
		port = "6379"
	}

	selectDB := 0
	if path := strings.TrimPrefix(parsed.Path, "/"); strings.TrimSpace(path) != "" {
		db, err := strconv.Atoi(path)
		if err != nil || db < 0 {
			return storeConnInfo{}, fmt.Errorf("invalid settings store db %q", path)
		}
		selectDB = db
	}

	info := storeConnInfo{
		addr:     net.JoinHostPort(host, port),
		selectDB: selectDB,
		useTLS:   useTLS,
	}
	if parsed.User != nil {
		info.username = parsed.User.Username()
		info.password, _ = parsed.User.Password()
	}
	return info, nil
}

func parseStoreAddr(addr string) (storeConnInfo, error) {
	trimmed := strings.TrimSpace(addr)

	host, port, err := net.SplitHostPort(trimmed)
	if err != nil {
		var addrErr *net.AddrError
		if !errors.As(err, &addrErr) {
			return storeConnInfo{}, fmt.Errorf("invalid settings store address: %w", err)
		}
		switch addrErr.Err {
		case "missing port in address":
			host = strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
			port = "6379"
		case "too many colons in address":
			host = trimmed
			port = "6379"
		default:
			return storeConnInfo{}, fmt.Errorf("invalid settings store address: %w", err)
		}
	}

	if strings.TrimSpace(host) == "" {
		return storeConnInfo{}, errors.New("settings store host missing")
	}

	return storeConnInfo{addr: net.JoinHostPort(host, port)}, nil
}
