package apimodels

// Stage is a lifecycle label on a model version. At most one version per
// model may occupy a given stage, except StageArchived which is a
// non-exclusive terminal label.
type Stage string

const (
	// StageNone is the default for a newly created version.
	StageNone Stage = ""
	// StageStaging marks the version under evaluation.
	StageStaging Stage = "staging"
	// StageProduction marks the version currently served.
	StageProduction Stage = "production"
	// StageArchived is the terminal label applied to versions displaced
	// from an exclusive stage. Many versions may be archived at once.
	StageArchived Stage = "archived"
)

// ExclusiveStages are the stages subject to the single-occupant invariant.
var ExclusiveStages = []Stage{StageStaging, StageProduction}

// IsExclusive reports whether the stage is subject to the single-occupant
// invariant.
func (s Stage) IsExclusive() bool {
	return s != StageNone && s != StageArchived
}

// KnownStages lists every assignable stage value. StageNone is
// assignable: setting it clears the version's stage.
var KnownStages = []Stage{StageNone, StageStaging, StageProduction, StageArchived}

// ValidStage reports whether s is an assignable stage value.
func ValidStage(s Stage) bool {
	for _, k := range KnownStages {
		if s == k {
			return true
		}
	}
	return false
}

// SecretScope selects which name-uniqueness slot a secret occupies.
type SecretScope string

const (
	// SecretScopeWorkspace shares the secret with every user of the
	// owning workspace.
	SecretScopeWorkspace SecretScope = "workspace"
	// SecretScopeUser keeps the secret private to its owning user.
	SecretScopeUser SecretScope = "user"
)

// ComponentType classifies stack components.
type ComponentType string

const (
	ComponentTypeOrchestrator      ComponentType = "orchestrator"
	ComponentTypeArtifactStore     ComponentType = "artifact_store"
	ComponentTypeContainerRegistry ComponentType = "container_registry"
	ComponentTypeExperimentTracker ComponentType = "experiment_tracker"
)

// RunStatus is the execution status of a pipeline run.
type RunStatus string

const (
	RunStatusInitializing RunStatus = "initializing"
	RunStatusRunning      RunStatus = "running"
	RunStatusCompleted    RunStatus = "completed"
	RunStatusFailed       RunStatus = "failed"
)

// ArtifactType classifies produced artifacts.
type ArtifactType string

const (
	ArtifactTypeData    ArtifactType = "data"
	ArtifactTypeModel   ArtifactType = "model"
	ArtifactTypeService ArtifactType = "service"
)
