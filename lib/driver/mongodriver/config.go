package mongodriver

import (
	"fmt"
	"sort"
	"strings"
)

// Config describes one MongoDB database
type Config struct {
	URI           string
	Database      string
	TimeoutSecond int
}

func (c Config) validate() error {
	if c.URI == "" {
		return fmt.Errorf("mongodb uri is empty")
	}
	if c.Database == "" {
		return fmt.Errorf("mongodb database is empty")
	}
	return nil
}

// RouterConfig describes the meta database and the shards of a sharded deployment
type RouterConfig struct {
	Meta   Config
	Shards map[string]Config
}

// String returns a formatted string representation of the configuration (without credentials)
func (c RouterConfig) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\nMONGODB\n  %-22s: %s\n", "Meta", c.Meta.Database))

	ids := make([]string, 0, len(c.Shards))
	for id := range c.Shards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", "Shard "+id, c.Shards[id].Database))
	}
	return sb.String()
}

// ParseShards parses "id=database,id=database" into shard configs sharing uri and timeout.
func ParseShards(spec, uri string, timeoutSecond int) (map[string]Config, error) {
	shards := make(map[string]Config)
	if strings.TrimSpace(spec) == "" {
		return shards, nil
	}
	for _, part := range strings.Split(spec, ",") {
		id, database, ok := strings.Cut(strings.TrimSpace(part), "=")
		id, database = strings.TrimSpace(id), strings.TrimSpace(database)
		if !ok || id == "" || database == "" {
			return nil, fmt.Errorf("invalid shard %q, expected id=database", part)
		}
		if _, exists := shards[id]; exists {
			return nil, fmt.Errorf("shard %q configured twice", id)
		}
		shards[id] = Config{URI: uri, Database: database, TimeoutSecond: timeoutSecond}
	}
	return shards, nil
}
