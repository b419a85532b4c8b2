package apireg

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ClientTable is the global the client scripts register into.
const ClientTable = "__apiregEndpoints"

// ClientEntry is what a caller needs to invoke an endpoint.
type ClientEntry struct {
	Verb           Verb `json:"verb"`
	ParameterCount int  `json:"parameterCount"`
}

// clientScript renders the snippet that records one endpoint in ClientTable.
// json.Marshal escapes <, > and &, so the output is safe inside a <script> tag.
func clientScript(path string, verb Verb, parameterCount int) string {
	key, _ := json.Marshal(path)
	entry, _ := json.Marshal(ClientEntry{Verb: verb, ParameterCount: parameterCount})
	return fmt.Sprintf("(globalThis.%[1]s = globalThis.%[1]s || {})[%[2]s] = %[3]s;\n", ClientTable, key, entry)
}

// ClientManifest collects the caller-side entries of every endpoint in regs, keyed by path.
func ClientManifest(regs ...*Registry) map[string]ClientEntry {
	out := make(map[string]ClientEntry)
	for _, r := range regs {
		for _, e := range r.Endpoints() {
			out[e.path] = ClientEntry{Verb: e.verb, ParameterCount: e.arity}
		}
	}
	return out
}

// ClientBundle concatenates the client scripts of every endpoint in regs,
// ordered by path. Endpoints shared through inheritance appear once.
func ClientBundle(regs ...*Registry) string {
	scripts := make(map[string]string)
	for _, r := range regs {
		for _, e := range r.Endpoints() {
			scripts[e.path] = e.clientScript
		}
	}
	paths := make([]string, 0, len(scripts))
	for p := range scripts {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		b.WriteString(scripts[p])
	}
	return b.String()
}
