package errors

// Stage names used across the pipeline.
const (
	StageManifest = "manifest"
	StageRecipe   = "recipe"
	StageRender   = "render"
	StageEngine   = "engine"
	StageVerify   = "verify"
	StageRuntime  = "runtime"
)

// Error code constants organized by stage.
// MAN001-MAN099: manifest resolution errors
// REC100-REC199: recipe validation errors
// RND200-RND299: render / copy-reference errors
// ENG300-ENG399: engine and native-compilation errors
// VER400-VER499: verification errors
// RUN500-RUN599: container start errors
const (
	// Manifest errors (MAN001-MAN099)
	ErrManifestNotFound      = "MAN001"
	ErrManifestSyntax        = "MAN002"
	ErrManifestEmpty         = "MAN003"
	ErrManifestDuplicate     = "MAN004"
	ErrManifestBadName       = "MAN005"
	ErrManifestBadConstraint = "MAN006"

	// Recipe errors (REC100-REC199)
	ErrRecipeNotFound      = "REC100"
	ErrRecipeParse         = "REC101"
	ErrRecipeMissingField  = "REC102"
	ErrRecipeBadPort       = "REC103"
	ErrRecipeBadUser       = "REC104"
	ErrRecipeBadLibPath    = "REC105"
	ErrRecipeBadPrefix     = "REC106"
	ErrRecipeBadStart      = "REC107"
	ErrRecipeBadImage      = "REC108"
	ErrRecipeBadEngine     = "REC109"

	// Render errors (RND200-RND299)
	ErrRenderTemplate     = "RND200"
	ErrRenderMissingInput = "RND201"
	ErrRenderWrite        = "RND202"

	// Engine errors (ENG300-ENG399)
	ErrEngineNotFound = "ENG300"
	ErrEngineBuild    = "ENG301"
	ErrEngineInspect  = "ENG302"
	ErrEngineRun      = "ENG303"
	ErrEngineNoImage  = "ENG304"

	// Verification errors (VER400-VER499)
	ErrVerifyToolchain = "VER400"
	ErrVerifyCache     = "VER401"
	ErrVerifyUser      = "VER402"
	ErrVerifyPort      = "VER403"
	ErrVerifyEnv       = "VER404"
	ErrVerifyStart     = "VER405"
	ErrVerifyProbe     = "VER406"

	// Runtime errors (RUN500-RUN599)
	ErrRuntimeStart = "RUN500"
)
