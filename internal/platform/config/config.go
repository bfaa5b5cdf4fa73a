package config

import (
	"os"
	"strings"
)

// Server captures process-level configuration. Everything comes from the
// environment so main stays lean.
type Server struct {
	Addr string

	// Vision inference endpoint.
	VisionAPIKey  string
	VisionBaseURL string
	VisionModels  []string

	// Document registration endpoint. Empty means the simulated responder
	// is used for every submission.
	RegistrarURL string

	// Reviewer auth.
	ReviewerJWTKey string

	// Whether the risk engine asks the inference endpoint for a second
	// opinion on top of the rule-based score.
	RiskUseAI bool
}

// DefaultVisionModels is the fallback candidate order when KYC_VISION_MODELS
// is not set. Models earlier in the list are preferred; later entries exist
// because quota buckets differ per model family.
var DefaultVisionModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.0-flash",
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("KYC_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtKey := os.Getenv("KYC_REVIEWER_JWT_KEY")
	if jwtKey == "" {
		// Development default - must be overridden in production.
		jwtKey = "dev-secret-key-change-in-production"
	}

	models := DefaultVisionModels
	if raw := os.Getenv("KYC_VISION_MODELS"); raw != "" {
		models = nil
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
	}

	return Server{
		Addr:           addr,
		VisionAPIKey:   os.Getenv("KYC_VISION_API_KEY"),
		VisionBaseURL:  os.Getenv("KYC_VISION_BASE_URL"),
		VisionModels:   models,
		RegistrarURL:   os.Getenv("KYC_REGISTRAR_URL"),
		ReviewerJWTKey: jwtKey,
		RiskUseAI:      os.Getenv("KYC_RISK_USE_AI") == "true",
	}
}
