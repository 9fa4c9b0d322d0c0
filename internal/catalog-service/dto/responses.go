package dto

import (
	"github.com/radieske/sports-bet-ledger/internal/catalog"
	"github.com/radieske/sports-bet-ledger/internal/catalog-service/importer"
	"github.com/radieske/sports-bet-ledger/internal/catalog-service/repo"
)

type MatchListResponse struct {
	Matches []catalog.Match `json:"matches"`
}

type AdminMatchListResponse struct {
	Matches []catalog.Match `json:"matches"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

type CategoryListResponse struct {
	Categories []repo.Category `json:"categories"`
}

type GameAPIListResponse struct {
	APIs []repo.GameAPI `json:"apis"`
}

type ImportResponse struct {
	importer.Result
	APIID string `json:"api_id"`
}

type FetchCategoriesResponse struct {
	APIID    string `json:"api_id"`
	Inserted int    `json:"inserted"`
}
