package cmd

import "strings"

// Permissions is the set of permission nodes granted to whoever executes a
// command. Nodes are dotted strings such as "qexed.list". A granted node
// ending in ".*" grants every node below it and "*" grants everything. The
// zero value grants nothing.
type Permissions struct {
	all   bool
	nodes map[string]struct{}
}

// Grant returns the permissions holding nodes.
func Grant(nodes ...string) Permissions {
	p := Permissions{nodes: make(map[string]struct{}, len(nodes))}
	for _, n := range nodes {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "*" {
			p.all = true
			continue
		}
		if n != "" {
			p.nodes[n] = struct{}{}
		}
	}
	return p
}

// AllPermissions returns the permissions of the console.
func AllPermissions() Permissions { return Permissions{all: true} }

// Has reports whether node is granted. The empty node is always granted.
func (p Permissions) Has(node string) bool {
	node = strings.ToLower(node)
	if node == "" || p.all {
		return true
	}
	if _, ok := p.nodes[node]; ok {
		return true
	}
	for i := len(node) - 1; i > 0; i-- {
		if node[i] != '.' {
			continue
		}
		if _, ok := p.nodes[node[:i]+".*"]; ok {
			return true
		}
	}
	return false
}
