package feed

import "github.com/AnshRaj112/civicpulse-backend/internal/models"

const (
	PointsPerReport  = 10
	PointsPerResolve = 50
)

type Derived struct {
	OwnReports []models.Report `json:"own_reports"`
	Resolved   int             `json:"resolved"`
	Karma      int             `json:"karma"`
}

// Derive computes the identity's own reports and karma from list. It has no
// side effects and does not retain list.
func Derive(list []models.Report, identity *models.Identity) Derived {
	d := Derived{OwnReports: []models.Report{}}
	if identity == nil || identity.ID == "" {
		return d
	}
	for _, r := range list {
		if r.AuthorID != identity.ID {
			continue
		}
		d.OwnReports = append(d.OwnReports, r.Clone())
		if r.Status == models.StatusResolved {
			d.Resolved++
		}
	}
	d.Karma = PointsPerReport*len(d.OwnReports) + PointsPerResolve*d.Resolved
	return d
}
