// Package cleanup provides ascii reporter
package cleanup

import (
	"fmt"
	"strings"
	"time"

	"github.com/arzani/roledetect-go/internal/infrastructure/caching/interfaces"
)

const (
	cyan        = "\033[38;2;86;182;194m"  // One Dark Cyan: #56B6C2
	cyanBright  = "\033[38;2;97;228;240m"  // Brighter Cyan: #61E4F0
	dimCyan     = "\033[38;2;47;91;102m"   // Dim Cyan: #2F5B66
	grey        = "\033[38;2;110;118;129m" // Brighter Grey: #6E7681
	dimGrey     = "\033[38;2;75;82;99m"    // Darker Grey: #4B5263
	success     = "\033[38;2;62;130;144m"  // Dim Cyan: #3E8290
	warning     = "\033[38;2;229;192;123m" // One Dark Yellow: #E5C07B
	errorRed    = "\033[38;2;224;108;117m" // One Dark Red: #E06C75
	white       = "\033[38;2;171;178;191m" // One Dark Foreground: #ABB2BF
	whiteBright = "\033[38;2;220;225;230m" // Brighter White
	reset       = "\033[0m"
	bold        = "\033[1m"
)

type Reporter struct {
	cache interfaces.Cache
}

func NewReporter(cache interfaces.Cache) *Reporter {
	return &Reporter{cache: cache}
}

func (r *Reporter) LogStage(message string, args ...any) {
	formattedMsg := fmt.Sprintf(message, args...)
	fmt.Printf("%s%s✦ %s%s%s\n", success, bold, grey, formattedMsg, reset)
}

func (r *Reporter) LogSuccess(message string, args ...any) {
	formattedMsg := fmt.Sprintf(message, args...)
	fmt.Printf("%s%s✦ %s%s%s\n", success, bold, white, formattedMsg, reset)
}

func (r *Reporter) LogError(message string, err error) {
	fmt.Printf("%s%s✖ ERROR: %s%s: %v%s\n", bold, errorRed, grey, message, err, reset)
}

func (r *Reporter) LogWarning(message string, args ...any) {
	formattedMsg := fmt.Sprintf(message, args...)
	fmt.Printf("%s%s⚠ WARNING: %s%s%s\n", bold, warning, grey, formattedMsg, reset)
}

func (r *Reporter) LogInfo(message string, args ...any) {
	formattedMsg := fmt.Sprintf(message, args...)
	fmt.Printf("%s▶ %s%s%s\n", dimGrey, grey, formattedMsg, reset)
}

// GenerateCacheReport renders a one-shot status snapshot of the in-memory tiers.
func (r *Reporter) GenerateCacheReport() string {
	var report strings.Builder
	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 MST")

	report.WriteString(fmt.Sprintf("%s%s▓ %s | %sRole Cache%s %s\n", bold, dimCyan, timestamp, whiteBright, "", reset))

	summary := r.cache.GetSummary()

	formatStoreLine := func(label string, stats map[string]any) string {
		var line strings.Builder
		line.WriteString(fmt.Sprintf("%s✦ %s:%s", cyanBright, label, reset))
		keys := []string{"entries", "expired", "actors", "totalEvents", "maxEntries", "maxActors", "maxEvents"}
		for _, key := range keys {
			value, ok := stats[key]
			if !ok {
				continue
			}
			line.WriteString(fmt.Sprintf(" %s%s:%s%v", dimCyan, key, cyan, value))
		}
		return line.String()
	}

	if stats, ok := summary["sessionRoles"].(map[string]any); ok {
		report.WriteString(formatStoreLine("session roles", stats) + "\n")
	}
	if stats, ok := summary["behaviors"].(map[string]any); ok {
		report.WriteString(formatStoreLine("behaviors", stats) + "\n")
	}

	return report.String()
}
