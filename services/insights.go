package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
	"github.com/qwertys/qwertys-api/utils"
)

const insightsSystemPrompt = `Tu es analyste qualité pour des programmes de fidélité.
À partir des statistiques mensuelles de tests (tests site: vérification des remises en ligne,
tests ligne: qualité du support téléphonique), rédige une synthèse en français de 5 à 8 phrases:
points forts, anomalies récurrentes, programmes à surveiller et actions recommandées.
N'invente aucun chiffre absent des données.`

// Completer is the language model used to write the summary.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// MonthlyStatsLoader is satisfied by StatisticsService.
type MonthlyStatsLoader interface {
	Monthly(ctx context.Context, scope policy.Scope, month time.Time) (*models.MonthlyStats, error)
}

type InsightsService struct {
	stats MonthlyStatsLoader
	ai    Completer
}

func NewInsightsService(stats MonthlyStatsLoader, ai Completer) *InsightsService {
	return &InsightsService{stats: stats, ai: ai}
}

// BuildInsightsPrompt renders the statistics as a compact, deterministic text.
func BuildInsightsPrompt(stats models.MonthlyStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mois: %s\n", stats.Month)
	fmt.Fprintf(&b, "Tests site: %d, tests ligne: %d, alertes ouvertes: %d\n", stats.TestsSite, stats.TestsLigne, stats.AlertesOuvertes)

	if len(stats.TopAnomalies) > 0 {
		type kv struct {
			k string
			v int
		}
		top := make([]kv, 0, len(stats.TopAnomalies))
		for k, v := range stats.TopAnomalies {
			top = append(top, kv{k, v})
		}
		sort.Slice(top, func(i, j int) bool {
			if top[i].v != top[j].v {
				return top[i].v > top[j].v
			}
			return top[i].k < top[j].k
		})
		b.WriteString("Anomalies:\n")
		for _, e := range top {
			fmt.Fprintf(&b, "- %s: %d\n", e.k, e.v)
		}
	}

	b.WriteString("Programmes:\n")
	for _, p := range stats.Programmes {
		fmt.Fprintf(&b, "- %s: %d site, %d ligne, %d non réalisables, %d avec anomalie, %d alertes ouvertes, conformité %.1f%%\n",
			p.ProgrammeNom, p.TestsSite, p.TestsLigne, p.TestsNonRealisable, p.TestsAvecAnomalie, p.AlertesOuvertes, p.TauxConformite)
	}
	return b.String()
}

func (s *InsightsService) Generate(ctx context.Context, scope policy.Scope, month time.Time) (*models.InsightsResponse, error) {
	if s.ai == nil {
		return nil, ErrNotConfigured
	}
	stats, err := s.stats.Monthly(ctx, scope, month)
	if err != nil {
		return nil, err
	}

	utils.LogAIAnalysis("insights requested", stats.Month, stats.TestsSite+stats.TestsLigne)

	summary, err := s.ai.Complete(ctx, insightsSystemPrompt, BuildInsightsPrompt(*stats))
	if err != nil {
		return nil, fmt.Errorf("failed to generate insights: %w", err)
	}

	return &models.InsightsResponse{
		Month:       stats.Month,
		Summary:     strings.TrimSpace(summary),
		GeneratedAt: time.Now(),
		Stats:       *stats,
	}, nil
}
