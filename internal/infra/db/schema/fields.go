package schema

// Logical table names.
const (
	TableAnalysis = "analysis"
	TableFolders  = "folders"
	TableCatalog  = "catalog"
	TableSaved    = "saved"
)

// Logical column names. Not every table has every column.
const (
	ColID            = "id"
	ColOwner         = "owner"
	ColPredictedKey  = "predicted_key"
	ColConfidence    = "confidence"
	ColCreatedAt     = "created_at"
	ColImage         = "image"
	ColVerified      = "verified"
	ColVerifiedAt    = "verified_at"
	ColFolder        = "folder"
	ColOutcomeReason = "outcome_reason"
	ColName          = "name"
	ColKey           = "key"
	ColTitle         = "title"
	ColDescription   = "description"
	ColTips          = "tips"
	ColAnalysis      = "analysis"
	ColSavedAt       = "saved_at"
)

type columnSpec struct {
	logical    string
	candidates []string
	required   bool
}

type tableSpec struct {
	logical    string
	candidates []string
	required   bool
	columns    []columnSpec
}

func req(logical string, candidates ...string) columnSpec {
	return columnSpec{logical: logical, candidates: candidates, required: true}
}

func opt(logical string, candidates ...string) columnSpec {
	return columnSpec{logical: logical, candidates: candidates}
}

// Candidate names in priority order, oldest revisions last.
var tableSpecs = []tableSpec{
	{
		logical:    TableAnalysis,
		candidates: []string{"analysis_results", "analyses", "analysis"},
		required:   true,
		columns: []columnSpec{
			req(ColID, "id", "analysis_id", "analysisid"),
			req(ColOwner, "user_id", "userid", "owner_id"),
			req(ColPredictedKey, "predicted_key", "predictedkey", "label_key"),
			req(ColConfidence, "confidence", "probability", "score"),
			req(ColCreatedAt, "created_at", "createdat"),
			req(ColImage, "image_path", "image", "image_url", "path", "file_path", "filepath", "image_ref"),
			req(ColVerified, "verified", "is_verified", "isverified"),
			opt(ColFolder, "folder_id", "folderid"),
			opt(ColVerifiedAt, "verified_at", "verifiedat"),
			opt(ColOutcomeReason, "outcome_reason", "reason", "reject_reason"),
		},
	},
	{
		logical:    TableFolders,
		candidates: []string{"folders", "folder"},
		required:   true,
		columns: []columnSpec{
			req(ColID, "id", "folder_id", "folderid"),
			req(ColOwner, "user_id", "userid", "owner_id"),
			req(ColName, "name", "title", "folder_name"),
			req(ColCreatedAt, "created_at", "createdat"),
		},
	},
	{
		logical:    TableCatalog,
		candidates: []string{"diseases", "disease_catalog", "disease_info"},
		columns: []columnSpec{
			req(ColKey, "key", "disease_key", "predicted_key"),
			opt(ColTitle, "title", "name"),
			opt(ColDescription, "description", "desc"),
			opt(ColTips, "tips", "recommendations", "recs"),
		},
	},
	{
		logical:    TableSaved,
		candidates: []string{"saved_results", "saved_analyses"},
		columns: []columnSpec{
			req(ColAnalysis, "analysis_result_id", "analysis_results_id", "analysis_id", "analysisid", "analysisresultid"),
			req(ColOwner, "user_id", "userid"),
			req(ColFolder, "folder_id", "folderid"),
			opt(ColID, "id", "saved_id", "savedid"),
			opt(ColSavedAt, "saved_at", "savedat", "created_at"),
		},
	},
}
