package pipeline

// StageSource tags whether a stage's output came from the model or from the
// deterministic heuristic fallback, so downstream code and tests can tell
// genuine model output from an approximation.
type StageSource string

const (
	SourceModel    StageSource = "model"
	SourceFallback StageSource = "fallback"
)

// StageOutcome records how one stage resolved.
type StageOutcome struct {
	Stage  string
	Source StageSource
	// Reason is set when Source is fallback: what pushed the stage off the
	// model path (call error, unparseable output, timeout).
	Reason string
}

// Stage names, also used as ledger operation keys.
const (
	StageContent   = "content_analysis"
	StageTheme     = "theme_analysis"
	StagePriority  = "priority_analysis"
	StageAction    = "action_extraction"
	StageEmbedding = "embedding_generation"
)

// Per-call cost estimates in cents.
const (
	costContentCents   = 0.2
	costThemeCents     = 0.2
	costPriorityCents  = 0.2
	costActionCents    = 0.2
	costEmbeddingCents = 0.01
)
