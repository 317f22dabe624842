package repository

import (
	"github.com/hashanchor/receipt-bridge/db"
	"github.com/hashanchor/receipt-bridge/entity"
	"github.com/hashanchor/receipt-bridge/repository/postgres"
)

type Repo struct {
	Receipts   entity.ReceiptsRepo
	BridgeJobs entity.BridgeJobsRepo
}

func NewRepo(db *db.DB) *Repo {
	return &Repo{
		Receipts:   postgres.NewReceiptsRepo("receipts", db),
		BridgeJobs: postgres.NewBridgeJobsRepo("bridge_jobs", db),
	}
}
