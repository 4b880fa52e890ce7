// utils/safelog.go
// ============================================================================
// SAFE LOGGING - Masque les données sensibles en production
// ============================================================================
// Les logs de production ne doivent contenir ni emails, ni numéros de
// téléphone des partenaires, ni codes promo, ni identifiants complets.
// ============================================================================

package utils

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
)

// ============================================================================
// CONFIGURATION
// ============================================================================

var (
	// IsProduction détermine si on est en mode production
	IsProduction = DetectProduction()

	// LogLevel permet de filtrer les logs (DEBUG, INFO, WARN, ERROR)
	LogLevel = ParseLogLevel(os.Getenv("LOG_LEVEL"))
)

const (
	LogLevelDebug = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// DetectProduction lit le mode depuis l'environnement. À rappeler après le
// chargement du fichier .env.
func DetectProduction() bool {
	return os.Getenv("GIN_MODE") == "release" ||
		os.Getenv("ENVIRONMENT") == "production" ||
		os.Getenv("ENV") == "production"
}

func ParseLogLevel(level string) int {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// ============================================================================
// PATTERNS DE MASQUAGE
// ============================================================================

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// Numéros français: 0X XX XX XX XX ou +33 X XX XX XX XX
	phoneRegex = regexp.MustCompile(`(?:\+33[\s.-]?|\b0)[1-9](?:[\s.-]?\d{2}){4}\b`)

	// "code promo: XXXX" / "code_promo=XXXX"
	promoRegex = regexp.MustCompile(`(?i)(code[ _-]?promo\s*[:=]\s*)\S+`)

	uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// ============================================================================
// FONCTIONS DE MASQUAGE
// ============================================================================

// MaskString masque les données sensibles dans une chaîne
func MaskString(input string) string {
	if !IsProduction {
		return input
	}

	result := uuidRegex.ReplaceAllStringFunc(input, shortenID)
	result = emailRegex.ReplaceAllString(result, "***@***.***")
	result = promoRegex.ReplaceAllString(result, "${1}****")
	result = phoneRegex.ReplaceAllString(result, "** ** ** ** **")

	return result
}

func shortenID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return "***"
}

// MaskID masque partiellement un ID (garde les 8 premiers caractères)
func MaskID(id string) string {
	if !IsProduction {
		return id
	}
	return shortenID(id)
}

func MaskEmail(email string) string {
	if !IsProduction {
		return email
	}
	return "***@***.***"
}

// ============================================================================
// FONCTIONS DE LOGGING SÉCURISÉES
// ============================================================================

func SafeLog(format string, args ...interface{}) {
	log.Print(MaskString(fmt.Sprintf(format, args...)))
}

func SafeDebug(format string, args ...interface{}) {
	if LogLevel > LogLevelDebug {
		return
	}
	log.Printf("[DEBUG] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeInfo(format string, args ...interface{}) {
	if LogLevel > LogLevelInfo {
		return
	}
	log.Printf("[INFO] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeWarn(format string, args ...interface{}) {
	if LogLevel > LogLevelWarn {
		return
	}
	log.Printf("[WARN] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeError(format string, args ...interface{}) {
	log.Printf("[ERROR] %s", MaskString(fmt.Sprintf(format, args...)))
}

// ============================================================================
// FONCTIONS DE LOGGING MÉTIER
// ============================================================================

// LogTestAction trace une action sur un test site/ligne
func LogTestAction(action, testType, testID, userID string) {
	log.Printf("[Test] %s - Type: %s Test: %s User: %s",
		action,
		testType,
		MaskID(testID),
		MaskID(userID))
}

// LogAlerteAction trace le cycle de vie d'une alerte
func LogAlerteAction(action, alerteID, userID string) {
	log.Printf("[Alerte] %s - Alerte: %s User: %s",
		action,
		MaskID(alerteID),
		MaskID(userID))
}

// LogAIAnalysis trace une génération de synthèse IA sans exposer son contenu
func LogAIAnalysis(action, month string, testCount int) {
	log.Printf("[AI] %s - Month: %s Tests: %d", action, month, testCount)
}

func LogAuthAction(action, email string, success bool) {
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	log.Printf("[Auth] %s - Email: %s Status: %s", action, MaskEmail(email), status)
}

// LogAPIRequest log une requête API (sans données sensibles dans le body)
func LogAPIRequest(method, path, userID string, statusCode int, duration string) {
	if IsProduction {
		path = uuidRegex.ReplaceAllStringFunc(path, shortenID)
	}
	log.Printf("[API] %s %s - User: %s Status: %d Duration: %s",
		method,
		path,
		MaskID(userID),
		statusCode,
		duration)
}

func LogWebSocket(action, userID string, role string) {
	log.Printf("[WS] %s - User: %s Role: %s", action, MaskID(userID), role)
}

// ============================================================================
// FONCTIONS UTILITAIRES
// ============================================================================

func GetEnvMode() string {
	if IsProduction {
		return "production"
	}
	return "development"
}

// LogStartup log les informations de démarrage de l'application
func LogStartup(appName, version, port string) {
	log.Printf("🚀 %s v%s starting...", appName, version)
	log.Printf("   Mode: %s", GetEnvMode())
	log.Printf("   Port: %s", port)
	log.Printf("   Log Level: %d", LogLevel)
	if IsProduction {
		log.Printf("   ⚠️  Production mode: Sensitive data will be masked in logs")
	}
}
