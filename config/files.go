package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"check-orchestrator/core/models"
)

// Site is one supported target-site entry from the site catalog
type Site struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

type siteFile struct {
	Sites []Site `yaml:"sites"`
}

// defaultSites mirrors the built-in catalog the service started with.
var defaultSites = []Site{
	{ID: "loft", URL: "https://www.loft.com"},
	{ID: "anntaylor", URL: "https://www.anntaylor.com"},
}

// LoadSites reads the site catalog from a YAML file. A missing file falls
// back to the built-in catalog rather than failing startup.
func LoadSites(path string) ([]Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultSites, nil
		}
		return nil, err
	}

	var f siteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Sites) == 0 {
		return defaultSites, nil
	}
	for i := range f.Sites {
		f.Sites[i].ID = strings.ToLower(f.Sites[i].ID)
	}
	return f.Sites, nil
}

// LoadProxies reads proxy entries from a line-oriented file, one proxy per
// line, ignoring blank lines and # comments. Unparseable lines are skipped.
func LoadProxies(path string) ([]*models.ProxyEntry, error) {
	lines, err := loadFileLines(path)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.ProxyEntry, 0, len(lines))
	for _, line := range lines {
		if e := ParseProxy(line); e != nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// ParseProxy parses a single proxy string. Supported formats:
//
//	ip:port
//	ip:port:username:password
//	username:password@ip:port
//	http://ip:port
//	http://username:password@ip:port
//	socks5://username:password@ip:port
func ParseProxy(raw string) *models.ProxyEntry {
	scheme := "http"
	rest := raw
	if i := strings.Index(rest, "://"); i >= 0 {
		scheme = rest[:i]
		rest = rest[i+3:]
	}

	if at := strings.Index(rest, "@"); at >= 0 {
		auth, server := rest[:at], rest[at+1:]
		user, pass, ok := strings.Cut(auth, ":")
		if !ok || !strings.Contains(server, ":") {
			return nil
		}
		return &models.ProxyEntry{
			Server:   scheme + "://" + server,
			Username: user,
			Password: pass,
			State:    models.ProxyHealthy,
		}
	}

	parts := strings.Split(rest, ":")
	switch len(parts) {
	case 2:
		return &models.ProxyEntry{
			Server: scheme + "://" + parts[0] + ":" + parts[1],
			State:  models.ProxyHealthy,
		}
	case 4:
		return &models.ProxyEntry{
			Server:   scheme + "://" + parts[0] + ":" + parts[1],
			Username: parts[2],
			Password: parts[3],
			State:    models.ProxyHealthy,
		}
	}
	return nil
}

// LoadZipCodes reads the ZIP code list used for synthetic shopper identities
func LoadZipCodes(path string) ([]string, error) {
	return loadFileLines(path)
}

func loadFileLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
