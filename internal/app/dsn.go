package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// dsnSummary is a credential-free description of a database DSN, safe to log.
type dsnSummary struct {
	Type        string
	Host        string
	Port        int
	User        string
	Name        string
	SSLMode     string
	Path        string
	PasswordSet bool
}

// Fields renders the summary as log fields.
func (s dsnSummary) Fields() log.Fields {
	if s.Type == "sqlite" {
		return log.Fields{"db_type": s.Type, "db_path": s.Path}
	}
	return log.Fields{
		"db_type":         s.Type,
		"db_host":         s.Host,
		"db_port":         s.Port,
		"db_user":         s.User,
		"db_name":         s.Name,
		"db_sslmode":      s.SSLMode,
		"db_password_set": s.PasswordSet,
	}
}

func describeDSN(dsn string) (dsnSummary, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return dsnSummary{}, fmt.Errorf("empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "file:") {
		pathPart := trimmed[len("file:"):]
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return dsnSummary{Type: "sqlite", Path: strings.TrimSpace(pathPart)}, nil
	}

	if strings.Contains(lowered, "host=") {
		return describeKeywordDSN(trimmed), nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return dsnSummary{}, fmt.Errorf("parse dsn: %w", errParse)
	}

	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		port := 5432
		if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
			parsedPort, errPort := strconv.Atoi(rawPort)
			if errPort != nil {
				return dsnSummary{}, fmt.Errorf("parse port: %w", errPort)
			}
			port = parsedPort
		}
		summary := dsnSummary{
			Type:    "postgres",
			Host:    strings.TrimSpace(u.Hostname()),
			Port:    port,
			Name:    strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
			SSLMode: strings.TrimSpace(u.Query().Get("sslmode")),
		}
		if summary.SSLMode == "" {
			summary.SSLMode = "disable"
		}
		if u.User != nil {
			summary.User = strings.TrimSpace(u.User.Username())
			_, summary.PasswordSet = u.User.Password()
		}
		return summary, nil
	default:
		if !strings.Contains(trimmed, "://") {
			return dsnSummary{Type: "sqlite", Path: trimmed}, nil
		}
		return dsnSummary{}, fmt.Errorf("unsupported dsn scheme")
	}
}

// describeKeywordDSN handles libpq "host=... dbname=..." style DSNs.
func describeKeywordDSN(dsn string) dsnSummary {
	summary := dsnSummary{Type: "postgres", Port: 5432, SSLMode: "disable"}
	for _, field := range strings.Fields(dsn) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "'")
		switch strings.ToLower(key) {
		case "host":
			summary.Host = value
		case "port":
			if port, errPort := strconv.Atoi(value); errPort == nil {
				summary.Port = port
			}
		case "user":
			summary.User = value
		case "dbname":
			summary.Name = value
		case "sslmode":
			summary.SSLMode = value
		case "password":
			summary.PasswordSet = value != ""
		}
	}
	return summary
}
