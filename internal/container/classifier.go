// Package container implements the cgroup-based container classifier
// (SPEC_FULL.md §4.3), supplemented with a PID-namespace signal from
// original_source's container_info.py.
package container

import (
	"os"
	"regexp"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Runtime is the closed classifier-result enum.
type Runtime string

const (
	RuntimeDocker     Runtime = "docker"
	RuntimeKubernetes Runtime = "kubernetes"
	RuntimeLXC        Runtime = "lxc"
	RuntimeNone       Runtime = "none"
)

// Info is the classification result for a pid.
type Info struct {
	Runtime        Runtime
	ID             string
	IsNamespaced   bool // FULL: differs from host PID namespace, independent of cgroup match
}

var (
	dockerRE = regexp.MustCompile(`/docker/([a-f0-9]{12,64})`)
	k8sRE    = regexp.MustCompile(`/kubepods/[^/]*/([a-f0-9]{12,64})`)
	lxcRE    = regexp.MustCompile(`/lxc/([^/]+)`)
	nsInodeRE = regexp.MustCompile(`\[(\d+)\]`)
)

// Classifier resolves a pid to container info, caching per-pid for the
// lifetime of the process node (cache invalidation is the caller's
// responsibility — evict on process-exit).
type Classifier struct {
	procRoot string
	cache    *lru.Cache[uint32, Info]

	hostNSOnce sync.Once
	hostNS     string
}

// New creates a Classifier backed by /proc. cacheSize bounds the LRU cache
// (one entry per distinct pid seen).
func New(cacheSize int) *Classifier {
	cache, _ := lru.New[uint32, Info](cacheSize)
	return &Classifier{procRoot: "/proc", cache: cache}
}

// Classify returns cached container info for pid, computing it on first
// request. A read failure (race with process exit) returns {none} without
// error, per SPEC_FULL.md §4.3.
func (c *Classifier) Classify(pid uint32) Info {
	if v, ok := c.cache.Get(pid); ok {
		return v
	}
	info := c.classifyUncached(pid)
	c.cache.Add(pid, info)
	return info
}

// Evict drops a pid's cached classification, to be called on process-exit
// so a reused pid is reclassified rather than inheriting stale state.
func (c *Classifier) Evict(pid uint32) {
	c.cache.Remove(pid)
}

func (c *Classifier) classifyUncached(pid uint32) Info {
	info := Info{Runtime: RuntimeNone}

	if ns, ok := c.readPIDNamespace(pid); ok {
		if host := c.hostPIDNamespace(); host != "" && ns != host {
			info.IsNamespaced = true
		}
	}

	data, err := os.ReadFile(c.procRoot + "/" + itoa(pid) + "/cgroup")
	if err != nil {
		return info
	}
	s := string(data)

	if m := dockerRE.FindStringSubmatch(s); m != nil {
		info.Runtime = RuntimeDocker
		info.ID = shortID(m[1])
		info.IsNamespaced = true
		return info
	}
	if m := k8sRE.FindStringSubmatch(s); m != nil {
		info.Runtime = RuntimeKubernetes
		info.ID = shortID(m[1])
		info.IsNamespaced = true
		return info
	}
	if m := lxcRE.FindStringSubmatch(s); m != nil {
		info.Runtime = RuntimeLXC
		info.ID = shortID(m[1])
		info.IsNamespaced = true
		return info
	}
	return info
}

func (c *Classifier) readPIDNamespace(pid uint32) (string, bool) {
	link, err := os.Readlink(c.procRoot + "/" + itoa(pid) + "/ns/pid")
	if err != nil {
		return "", false
	}
	m := nsInodeRE.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (c *Classifier) hostPIDNamespace() string {
	c.hostNSOnce.Do(func() {
		ns, ok := c.readPIDNamespace(1)
		if ok {
			c.hostNS = ns
		}
	})
	return c.hostNS
}

// shortID truncates a full cgroup-path hash to its first 12 characters,
// matching Docker/Kubernetes short-ID convention and original_source's
// container_info.py behavior.
func shortID(full string) string {
	if len(full) <= 12 {
		return full
	}
	return full[:12]
}

func itoa(pid uint32) string {
	return strconv.FormatUint(uint64(pid), 10)
}
