package presenter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hashanchor/receipt-bridge/config"
	"github.com/hashanchor/receipt-bridge/db"
	"github.com/hashanchor/receipt-bridge/entity"
	"github.com/hashanchor/receipt-bridge/logging"
	"github.com/hashanchor/receipt-bridge/presenter/http/middleware"
	"github.com/hashanchor/receipt-bridge/presenter/http/render"
	"github.com/hashanchor/receipt-bridge/relay"
	"github.com/hashanchor/receipt-bridge/repository"
)

// JobScheduler is the part of the relay scheduler the route layer drives.
type JobScheduler interface {
	StartJob(ctx context.Context, job *entity.BridgeJob, receipt *entity.Receipt)
	CancelJob(ctx context.Context, id uuid.UUID) error
}

type Presenter struct {
	// jobsCtx bounds the lifetime of relay pipelines spawned by relay
	// requests. It outlives individual HTTP requests.
	jobsCtx   context.Context
	logger    logging.Logger
	repo      *repository.Repo
	scheduler JobScheduler
	cfg       *config.Config
	root      chi.Router
}

func NewPresenter(ctx context.Context, logger logging.Logger, repo *repository.Repo, scheduler JobScheduler, cfg *config.Config) *Presenter {
	p := &Presenter{
		jobsCtx:   ctx,
		logger:    logger,
		repo:      repo,
		scheduler: scheduler,
		cfg:       cfg,
		root:      chi.NewMux(),
	}
	p.root.Use(chimiddleware.Throttle(100))
	p.root.Use(chimiddleware.RequestID)
	p.root.Use(middleware.NewLoggerMiddleware(p.logger))
	p.root.Use(middleware.Recoverer)
	p.root.Route("/api", func(r chi.Router) {
		r.Get("/bridge/status/{docHash:0x[0-9a-fA-F]{64}}", p.GetBridgeStatus)
		r.Get("/receipts/{hash:0x[0-9a-fA-F]{64}}", p.GetReceipt)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(cfg.Auth.JWTSecret))
			r.Post("/receipts", p.CreateReceipt)
			r.Post("/bridge/relay", p.RelayReceipt)
			r.Post("/bridge/jobs/{jobID:[0-9a-fA-F-]{36}}/cancel", p.CancelJob)
		})
	})
	return p
}

func (p *Presenter) Handler() http.Handler {
	return p.root
}

func (p *Presenter) Serve(addr string) error {
	p.logger.WithField("addr", addr).Info("starting bridge api service")
	return http.ListenAndServe(addr, p.root)
}

// RelayReceipt fans out one bridge job per requested target chain and starts
// their pipelines. The response returns the created jobs immediately, relay
// progress is observable via the status endpoint.
func (p *Presenter) RelayReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, r, http.StatusBadRequest, fmt.Errorf("can't decode relay request: %w", err))
		return
	}
	if req.ReceiptID == uuid.Nil {
		render.Error(w, r, http.StatusBadRequest, errors.New("receiptId is required"))
		return
	}
	if len(req.TargetChains) == 0 {
		render.Error(w, r, http.StatusBadRequest, errors.New("at least one target chain is required"))
		return
	}
	chains := make([]entity.Chain, 0, len(req.TargetChains))
	for _, name := range req.TargetChains {
		chain, err := entity.ParseChain(name)
		if err != nil {
			render.Error(w, r, http.StatusBadRequest, err)
			return
		}
		if p.cfg.GetChainConfig(chain) == nil {
			render.Error(w, r, http.StatusBadRequest, fmt.Errorf("chain %q is not configured", chain))
			return
		}
		chains = append(chains, chain)
	}

	receipt, err := p.repo.Receipts.GetByID(ctx, req.ReceiptID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			render.Error(w, r, http.StatusNotFound, fmt.Errorf("receipt %s not found", req.ReceiptID))
			return
		}
		render.Error(w, r, http.StatusInternalServerError, err)
		return
	}

	res := &RelayResult{Jobs: make([]*JobInfo, 0, len(chains))}
	for _, chain := range chains {
		job := &entity.BridgeJob{
			ID:                    uuid.New(),
			ReceiptID:             receipt.ID,
			DocHash:               receipt.ContentHash,
			SourceChain:           p.cfg.Relay.SourceChain,
			TargetChain:           chain,
			Status:                entity.JobPending,
			RequiredConfirmations: p.cfg.GetChainConfig(chain).RequiredConfirmations,
			MaxAttempts:           p.cfg.Relay.MaxAttempts,
			Metadata:              req.Metadata,
		}
		if err = p.repo.BridgeJobs.Create(ctx, job); err != nil {
			render.Error(w, r, http.StatusInternalServerError, err)
			return
		}
		p.scheduler.StartJob(p.jobsCtx, job, receipt)
		res.Jobs = append(res.Jobs, jobToInfo(job))
	}
	render.JSON(w, r, http.StatusCreated, res)
}

func (p *Presenter) GetBridgeStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docHash := common.HexToHash(chi.URLParam(r, "docHash"))

	jobs, err := p.repo.BridgeJobs.FindByDocHash(ctx, docHash)
	if err != nil {
		render.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	render.JSON(w, r, http.StatusOK, &StatusResult{
		DocHash: docHash,
		Chains:  relay.GetCrossChainStatus(docHash, jobs),
	})
}

func (p *Presenter) GetReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash := common.HexToHash(chi.URLParam(r, "hash"))

	receipt, err := p.repo.Receipts.GetByContentHash(ctx, hash)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			render.Error(w, r, http.StatusNotFound, fmt.Errorf("receipt with content hash %s not found", hash))
			return
		}
		render.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	jobs, err := p.repo.BridgeJobs.FindByDocHash(ctx, hash)
	if err != nil {
		render.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	res := &ReceiptResult{Receipt: receiptToInfo(receipt)}
	if len(jobs) > 0 {
		res.CrossChainStatus = relay.GetCrossChainStatus(hash, jobs)
	}
	render.JSON(w, r, http.StatusOK, res)
}

func (p *Presenter) CreateReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req CreateReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Error(w, r, http.StatusBadRequest, fmt.Errorf("can't decode receipt request: %w", err))
		return
	}
	if req.Type == "" || req.SubjectID == "" || req.ContentHash == (common.Hash{}) || len(req.Proof) == 0 {
		render.Error(w, r, http.StatusBadRequest, errors.New("type, subjectId, contentHash and proof are required"))
		return
	}

	seq, err := p.repo.Receipts.NextSequence(ctx, req.SubjectID)
	if err != nil {
		render.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	receipt := &entity.Receipt{
		ID:          uuid.New(),
		Type:        req.Type,
		SubjectID:   req.SubjectID,
		ContentHash: req.ContentHash,
		Proof:       req.Proof,
		Sequence:    seq,
	}
	if err = p.repo.Receipts.Create(ctx, receipt); err != nil {
		render.Error(w, r, http.StatusInternalServerError, err)
		return
	}
	render.JSON(w, r, http.StatusCreated, receiptToInfo(receipt))
}

func (p *Presenter) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		render.Error(w, r, http.StatusBadRequest, fmt.Errorf("can't parse job id: %w", err))
		return
	}
	err = p.scheduler.CancelJob(r.Context(), id)
	switch {
	case err == nil:
		render.JSON(w, r, http.StatusOK, &CancelResult{ID: id, Status: entity.JobCancelled})
	case errors.Is(err, db.ErrNotFound):
		render.Error(w, r, http.StatusNotFound, fmt.Errorf("job %s not found", id))
	case errors.Is(err, relay.ErrJobTerminal), errors.Is(err, entity.ErrStaleJobStatus):
		render.Error(w, r, http.StatusConflict, err)
	default:
		render.Error(w, r, http.StatusInternalServerError, err)
	}
}
