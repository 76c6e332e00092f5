package domain

// Stage identifies one step of the guided flow.
type Stage string

// Stages of the guided flow. BusinessAnalysis is a side state reachable from any stage.
const (
	StageIntro            Stage = "intro"
	StageBasicInfo        Stage = "basic_info"
	StageDeepDive         Stage = "deep_dive"
	StageFinancial        Stage = "financial"
	StageBusinessPlan     Stage = "business_plan"
	StageBusinessAnalysis Stage = "business_analysis"
)

// MainFlow lists the main-flow stages in order.
var MainFlow = []Stage{
	StageIntro,
	StageBasicInfo,
	StageDeepDive,
	StageFinancial,
	StageBusinessPlan,
}

// AllStages returns every valid stage, main flow first.
func AllStages() []Stage {
	out := make([]Stage, 0, len(MainFlow)+1)
	out = append(out, MainFlow...)
	return append(out, StageBusinessAnalysis)
}

// IsValid reports whether s is a member of the stage enumeration.
func (s Stage) IsValid() bool {
	switch s {
	case StageIntro, StageBasicInfo, StageDeepDive, StageFinancial,
		StageBusinessPlan, StageBusinessAnalysis:
		return true
	}
	return false
}

func (s Stage) String() string { return string(s) }
