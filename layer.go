package stratum

import "fmt"

// Layer identifies a category of session memory. The set of layers is
// closed: each one carries a default retention policy, and the compactor
// renders them in a fixed order. Adding a layer means adding a constant
// and a row to the policy table; there is no per-layer control flow.
type Layer string

const (
	// LayerIdentity holds who the agent is: role, capabilities,
	// constraints, explicitly stated user preferences. Never altered or
	// dropped; byte-identical across any number of compactions.
	LayerIdentity Layer = "identity"

	// LayerTask holds the active objective in the user's words.
	// Preserved verbatim while unresolved; see [Session.ResolveTask].
	LayerTask Layer = "task"

	// LayerDecisions holds significant decisions. Preserved with
	// rationale, linked by stable id to the actions they produced.
	LayerDecisions Layer = "decisions"

	// LayerActions holds the factual record of what was done.
	// Append-only and never dropped, but verbose output is trimmed.
	LayerActions Layer = "actions"

	// LayerErrors holds what went wrong. Preserved verbatim until a fix
	// is recorded; see [Session.ResolveError].
	LayerErrors Layer = "errors"

	// LayerWorkspace holds the workspace snapshot (branch, modified
	// files, cwd). Replaced wholesale each cycle; only the latest
	// snapshot matters.
	LayerWorkspace Layer = "workspace"

	// LayerContext holds background information and research findings.
	// The only layer eligible for aggressive, lossy summarization.
	LayerContext Layer = "context"
)

// RetentionAction is what the retention policy does with a unit of
// content during compaction.
type RetentionAction string

const (
	// KeepVerbatim preserves content byte-for-byte.
	KeepVerbatim RetentionAction = "keep_verbatim"

	// Trim drops verbose substrings but retains structure, e.g.
	// truncating long command output to a fixed head and tail.
	Trim RetentionAction = "trim"

	// Summarize hands content off to the injected summarizer. Lossy.
	Summarize RetentionAction = "summarize"
)

// layerPolicies is the layer → default retention action table.
// Layer is authoritative; entry importance is advisory metadata and
// never overrides the layer policy.
var layerPolicies = map[Layer]RetentionAction{
	LayerIdentity:  KeepVerbatim,
	LayerTask:      KeepVerbatim,
	LayerDecisions: KeepVerbatim,
	LayerActions:   Trim,
	LayerErrors:    KeepVerbatim,
	LayerWorkspace: KeepVerbatim, // latest snapshot only; older ones are dropped
	LayerContext:   Summarize,
}

// AssemblyOrder is the fixed order in which layer renderings are
// concatenated into the compacted text. The conversation window is
// rendered after LayerContext.
var AssemblyOrder = [...]Layer{
	LayerIdentity,
	LayerTask,
	LayerErrors,
	LayerDecisions,
	LayerActions,
	LayerWorkspace,
	LayerContext,
}

// Valid reports whether l is one of the seven known layers.
func (l Layer) Valid() bool {
	_, ok := layerPolicies[l]
	return ok
}

// Policy returns the default retention action for the layer.
// Panics if the layer is unknown; validate with [Layer.Valid] or
// [ParseLayer] first.
func (l Layer) Policy() RetentionAction {
	action, ok := layerPolicies[l]
	if !ok {
		panic(fmt.Sprintf("stratum: Policy called on unknown layer %q", string(l)))
	}
	return action
}

// ParseLayer converts a string into a Layer, returning
// [ErrInvalidLayer] for anything outside the closed set.
func ParseLayer(s string) (Layer, error) {
	l := Layer(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLayer, s)
	}
	return l, nil
}
