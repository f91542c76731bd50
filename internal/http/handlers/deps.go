package handlers

import (
	"contagem/internal/config"
	"contagem/internal/repos"
	"contagem/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	Auth         *services.AuthService
	Registration *services.RegistrationService
	Stations     *Stations

	AuthHandler      *AuthHandler
	PageHandler      *PageHandler
	SearchHandler    *SearchHandler
	InventoryHandler *InventoryHandler
	WorkflowHandler  *WorkflowHandler
	ScannerHandler   *ScannerHandler
	AdminHandler     *AdminHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config) *Deps {
	userRepo := repos.NewUserRepo(db)
	catRepo := repos.NewCatalogRepo(db)
	countRepo := repos.NewCountRepo(db)

	auth := &services.AuthService{Users: userRepo}
	catalogSvc := services.NewCatalogService(catRepo, cfg.SearchLimit)
	regSvc := services.NewRegistrationService(countRepo, cfg.PersistTimeout)
	recentSvc := services.NewRecentService(countRepo, catRepo, cfg.RecentLimit)

	stations := NewStations(StationConfig{
		Catalog:      catalogSvc,
		Registration: regSvc,
		SearchLimit:  cfg.SearchLimit,
		Debounce:     cfg.ScanDebounce,
		IdleTimeout:  cfg.StationIdle,
	})

	return &Deps{
		Auth:         auth,
		Registration: regSvc,
		Stations:     stations,

		AuthHandler:      &AuthHandler{Auth: auth, Stations: stations},
		PageHandler:      &PageHandler{Recent: recentSvc, Stations: stations},
		SearchHandler:    &SearchHandler{Catalog: catalogSvc},
		InventoryHandler: &InventoryHandler{Catalog: catalogSvc, Register: regSvc, Recent: recentSvc, Stations: stations},
		WorkflowHandler:  &WorkflowHandler{Catalog: catalogSvc, Stations: stations},
		ScannerHandler:   &ScannerHandler{Stations: stations},
		AdminHandler:     &AdminHandler{Catalog: catRepo, Recent: recentSvc},
	}
}

// Shutdown releases every camera and waits for pending background writes.
func (d *Deps) Shutdown() {
	d.Stations.CloseAll()
	d.Registration.Wait()
}
