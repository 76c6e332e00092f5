package domain

// Answer keys. These match the field names of saved records.
const (
	KeyName            = "namn"
	KeyCity            = "stad"
	KeyTargetAudience  = "malgrupp"
	KeyProductOffering = "produktutbud"
	KeyStrategy        = "strategi"
	KeyTimeline        = "tidsplan"
	KeyBudget          = "budget"
	KeyExperience      = "erfarenhet"
	KeyCompanyName     = "foretagsnamn"
	KeyMarketSegments  = "marknadssegment"
	KeyCompetitors     = "konkurrenter"
	KeyBusinessPlan    = "affarsplan"
)

// Artifact keys accepted by the session store's generic accessors.
const (
	ArtifactSwotText     = "swot_analysis"
	ArtifactSwotImage    = "swot_image"
	ArtifactManifest     = "manifest"
	ArtifactLogo         = "logo_url"
	ArtifactPDFPath      = "pdf_path"
	ArtifactBusinessPlan = KeyBusinessPlan
)

// Strategies offered on the basic info stage.
var Strategies = []string{"Premium", "Budget", "Nisch", "Hybrid"}

// MarketSegments offered on the deep dive stage.
var MarketSegments = []string{"Privatpersoner", "Företag", "Offentlig sektor", "Både privat och företag"}
