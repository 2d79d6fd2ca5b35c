package store

import (
	"fmt"
	"regexp"
)

// Label keys used for exofit containers
const (
	LabelProject   = "exofit.project"
	LabelNamespace = "exofit.namespace"
	LabelComponent = "exofit.component"
	LabelRedisPort = "exofit.redis.port"
)

// ComponentRedis is the component label value of the run store container.
const ComponentRedis = "redis"

// MaxNameLength is the maximum length for a namespace used in container names.
const MaxNameLength = 50

// NamePattern is DNS-compatible: lowercase alphanumeric, hyphens allowed but not at start/end.
var NamePattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?$`)

// ValidateName checks that a namespace can be used in a container name.
func ValidateName(namespace string) error {
	if namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if len(namespace) > MaxNameLength {
		return fmt.Errorf("namespace too long: %d characters (max: %d)", len(namespace), MaxNameLength)
	}
	if !NamePattern.MatchString(namespace) {
		return fmt.Errorf("invalid namespace '%s': must be lowercase alphanumeric with hyphens (not at start/end)", namespace)
	}
	return nil
}

// BuildLabels creates the label set for an exofit container.
func BuildLabels(namespace, component string, port int) map[string]string {
	labels := map[string]string{
		LabelProject:   "true",
		LabelNamespace: namespace,
		LabelComponent: component,
	}
	if port > 0 {
		labels[LabelRedisPort] = fmt.Sprintf("%d", port)
	}
	return labels
}

// RedisContainerName returns the Redis container name for a namespace.
func RedisContainerName(namespace string) string {
	return fmt.Sprintf("exofit-redis-%s", namespace)
}
