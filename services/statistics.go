package services

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/policy"
)

// AggregateMonthlyStats computes the per-programme figures of a month.
// Programmes without any test or open alert are omitted.
func AggregateMonthlyStats(month string, programmes []models.Programme, sites []models.TestSite, lignes []models.TestLigne, alertes []models.Alerte) models.MonthlyStats {
	stats := models.MonthlyStats{
		Month:        month,
		TestsSite:    len(sites),
		TestsLigne:   len(lignes),
		TopAnomalies: map[string]int{},
		Programmes:   []models.ProgrammeStats{},
	}

	byID := map[string]*models.ProgrammeStats{}
	conformes := map[string]int{}
	get := func(id string) *models.ProgrammeStats {
		if ps, ok := byID[id]; ok {
			return ps
		}
		ps := &models.ProgrammeStats{ProgrammeID: id}
		byID[id] = ps
		return ps
	}

	count := func(programmeID string, nonRealisable bool, anomalies []string) {
		ps := get(programmeID)
		switch {
		case nonRealisable:
			ps.TestsNonRealisable++
		case len(anomalies) > 0:
			ps.TestsAvecAnomalie++
		default:
			conformes[programmeID]++
		}
		for _, a := range anomalies {
			stats.TopAnomalies[a]++
		}
	}

	for _, t := range sites {
		get(t.ProgrammeID).TestsSite++
		count(t.ProgrammeID, t.TestNonRealisable, t.Anomalies)
	}
	for _, t := range lignes {
		get(t.ProgrammeID).TestsLigne++
		count(t.ProgrammeID, t.TestNonRealisable, t.Anomalies)
	}
	for _, a := range alertes {
		if a.Statut != models.AlerteOuvert {
			continue
		}
		get(a.ProgrammeID).AlertesOuvertes++
		stats.AlertesOuvertes++
	}

	names := map[string]string{}
	for _, p := range programmes {
		names[p.ID] = p.Nom
	}

	for id, ps := range byID {
		ps.ProgrammeNom = names[id]
		if total := ps.TestsSite + ps.TestsLigne; total > 0 {
			ps.TauxConformite = roundHalfUp(float64(conformes[id])/float64(total)*100, 1)
		}
		stats.Programmes = append(stats.Programmes, *ps)
	}
	sort.Slice(stats.Programmes, func(i, j int) bool {
		if stats.Programmes[i].ProgrammeNom != stats.Programmes[j].ProgrammeNom {
			return stats.Programmes[i].ProgrammeNom < stats.Programmes[j].ProgrammeNom
		}
		return stats.Programmes[i].ProgrammeID < stats.Programmes[j].ProgrammeID
	})

	return stats
}

type StatisticsService struct {
	sites      *TestSiteService
	lignes     *TestLigneService
	alertes    *AlerteService
	programmes *ProgrammeService
	loc        *time.Location
}

func NewStatisticsService(sites *TestSiteService, lignes *TestLigneService, alertes *AlerteService, programmes *ProgrammeService, loc *time.Location) *StatisticsService {
	return &StatisticsService{sites: sites, lignes: lignes, alertes: alertes, programmes: programmes, loc: loc}
}

// Monthly loads the month's data concurrently and aggregates it.
func (s *StatisticsService) Monthly(ctx context.Context, scope policy.Scope, month time.Time) (*models.MonthlyStats, error) {
	start, end := MonthBounds(month.In(s.loc))
	filter := models.TestFilter{From: &start, To: &end}

	var (
		programmes []models.Programme
		sites      []models.TestSite
		lignes     []models.TestLigne
		alertes    []models.Alerte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		programmes, err = s.programmes.List(gctx, scope, false)
		return err
	})
	g.Go(func() error {
		var err error
		sites, err = s.sites.List(gctx, scope, filter)
		return err
	})
	g.Go(func() error {
		var err error
		lignes, err = s.lignes.List(gctx, scope, filter)
		return err
	})
	g.Go(func() error {
		var err error
		alertes, err = s.alertes.List(gctx, scope, models.AlerteFilter{Statut: models.AlerteOuvert})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := AggregateMonthlyStats(start.Format("2006-01"), programmes, sites, lignes, alertes)
	return &stats, nil
}
